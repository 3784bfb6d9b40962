package fieldcrypt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrors_Categories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"ErrNoKeys", ErrNoKeys, ErrConfiguration},
		{"ErrInvalidKey", ErrInvalidKey, ErrConfiguration},
		{"ErrForbiddenConstraint", ErrForbiddenConstraint, ErrConfiguration},
		{"ErrInvalidColumn", ErrInvalidColumn, ErrConfiguration},
		{"ErrUnknownType", ErrUnknownType, ErrConfiguration},
		{"ErrInvalidToken", ErrInvalidToken, ErrDecryption},
		{"ErrTokenTampered", ErrTokenTampered, ErrDecryption},
		{"ErrUnsupportedPredicate", ErrUnsupportedPredicate, ErrQuery},
	}

	categories := []error{ErrConfiguration, ErrDecryption, ErrQuery}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, c := range categories {
				require.Equal(t, c == tt.category, errors.Is(tt.err, c),
					"%v should belong only to %v", tt.err, tt.category)
			}
		})
	}
}

func TestErrors_Identity(t *testing.T) {
	allErrors := []error{
		ErrConfiguration,
		ErrDecryption,
		ErrQuery,
		ErrInvalidValue,
		ErrWasNull,
		ErrKeySetClosed,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j {
				require.False(t, errors.Is(err1, err2), "different errors should not be equal: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrors_Messages(t *testing.T) {
	tests := []struct {
		err      error
		contains string
	}{
		{ErrNoKeys, "no keys"},
		{ErrInvalidKey, "32 bytes"},
		{ErrForbiddenConstraint, "primary key, unique or indexed"},
		{ErrInvalidToken, "invalid token"},
		{ErrTokenTampered, "header mismatch"},
		{ErrUnsupportedPredicate, "not allowed"},
		{ErrKeySetClosed, "closed"},
	}

	for _, tt := range tests {
		require.Contains(t, tt.err.Error(), tt.contains)
		require.Contains(t, tt.err.Error(), "fieldcrypt:")
	}
}
