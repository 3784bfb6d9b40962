package fieldcrypt

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of these,
// so callers can branch with errors.Is on the category alone.
var (
	// ErrConfiguration indicates a codec or key set was declared with settings
	// it cannot honour. Raised at construction time, before any data operation.
	ErrConfiguration = errors.New("fieldcrypt: configuration error")

	// ErrDecryption indicates no key in the key set authenticates a token.
	ErrDecryption = errors.New("fieldcrypt: decryption failed")

	// ErrQuery indicates a predicate the field cannot answer correctly.
	// EncryptedField raises it for every lookup except IsNull; DualField for
	// everything but equality, membership and IsNull.
	ErrQuery = errors.New("fieldcrypt: unsupported lookup")
)

var (
	// ErrNoKeys indicates neither a key list nor a fallback secret was configured.
	ErrNoKeys = fmt.Errorf("%w: no keys provided", ErrConfiguration)

	// ErrInvalidKey indicates a raw (non-derived) key is not a 32-byte key.
	ErrInvalidKey = fmt.Errorf("%w: raw key must be 32 bytes or url-safe base64 of 32 bytes", ErrConfiguration)

	// ErrForbiddenConstraint indicates primary key, unique or index was requested
	// on a ciphertext column.
	ErrForbiddenConstraint = fmt.Errorf("%w: ciphertext column cannot be primary key, unique or indexed", ErrConfiguration)

	// ErrInvalidColumn indicates a field name that is not a safe column identifier.
	ErrInvalidColumn = fmt.Errorf("%w: invalid column name", ErrConfiguration)

	// ErrUnknownType indicates no Type is registered under the requested name.
	ErrUnknownType = fmt.Errorf("%w: unknown value type", ErrConfiguration)

	// ErrInvalidToken indicates the token is not a well-formed ciphertext token.
	ErrInvalidToken = fmt.Errorf("%w: invalid token format", ErrDecryption)

	// ErrTokenTampered indicates the authenticated header copy disagrees with
	// the outer header.
	ErrTokenTampered = fmt.Errorf("%w: token header mismatch", ErrDecryption)

	// ErrUnsupportedPredicate indicates an operator that cannot be applied to
	// a digest or ciphertext column.
	ErrUnsupportedPredicate = fmt.Errorf("%w: operator not allowed on this field", ErrQuery)
)

var (
	// ErrInvalidValue indicates a Go value of the wrong type for a field's Type.
	ErrInvalidValue = errors.New("fieldcrypt: invalid value for type")

	// ErrWasNull indicates a NULL column was decoded where a value was required.
	ErrWasNull = errors.New("fieldcrypt: value was null")

	// ErrKeySetClosed indicates the key set was used after Close() was called.
	ErrKeySetClosed = errors.New("fieldcrypt: key set is closed")
)
