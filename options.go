package fieldcrypt

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// KeySetOption configures a KeySet.
type KeySetOption func(*keySetConfig)

type keySetConfig struct {
	derive         bool
	digestMaterial []byte
	logger         *slog.Logger
	now            func() time.Time
}

func defaultKeySetConfig() *keySetConfig {
	return &keySetConfig{
		derive: true,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
}

// WithRawKeys disables HKDF derivation. Every material must then already be a
// valid 32-byte key (raw, or url-safe base64 as produced by GenerateKey).
func WithRawKeys() KeySetOption {
	return func(c *keySetConfig) {
		c.derive = false
	}
}

// WithDerivation sets derivation explicitly; WithDerivation(false) is
// equivalent to WithRawKeys.
func WithDerivation(derive bool) KeySetOption {
	return func(c *keySetConfig) {
		c.derive = derive
	}
}

// WithDigestKey sets the material the digest key is derived from, the same
// way key materials are (HKDF, or a 32-byte key with WithRawKeys). Configure
// a dedicated digest key and never rotate it: changing it changes every
// digest. Passing the material of a removed encryption key reproduces the
// digests that key used to produce.
func WithDigestKey(material []byte) KeySetOption {
	m := copyBytes(material)
	if m == nil {
		m = []byte{}
	}
	return func(c *keySetConfig) {
		c.digestMaterial = copyBytes(m)
	}
}

// WithLogger attaches a logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) KeySetOption {
	return func(c *keySetConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// FieldOption configures an EncryptedField or DualField.
type FieldOption func(*fieldConfig)

// fieldConfig is filled by options and validated once in the constructor.
type fieldConfig struct {
	primaryKey    bool
	unique        bool
	indexed       bool
	uniqueDigest  bool
	indexedDigest bool
	normalizer    Normalizer
}

// PrimaryKey declares the field as the record's primary key.
// Always rejected: ciphertext is not deterministic.
func PrimaryKey() FieldOption {
	return func(c *fieldConfig) { c.primaryKey = true }
}

// Unique declares a uniqueness constraint on the ciphertext column.
// Always rejected; use UniqueDigest on a DualField instead.
func Unique() FieldOption {
	return func(c *fieldConfig) { c.unique = true }
}

// Indexed declares an index on the ciphertext column.
// Always rejected; use IndexedDigest on a DualField instead.
func Indexed() FieldOption {
	return func(c *fieldConfig) { c.indexed = true }
}

// UniqueDigest declares a uniqueness constraint on a DualField's digest column.
func UniqueDigest() FieldOption {
	return func(c *fieldConfig) { c.uniqueDigest = true }
}

// IndexedDigest declares an index on a DualField's digest column.
func IndexedDigest() FieldOption {
	return func(c *fieldConfig) { c.indexedDigest = true }
}

// WithNormalizer transforms the canonical form before it is digested.
// The ciphertext always holds the original value.
func WithNormalizer(norm Normalizer) FieldOption {
	return func(c *fieldConfig) { c.normalizer = norm }
}

func (c *fieldConfig) validate() error {
	switch {
	case c.primaryKey:
		return fmt.Errorf("%w (primary key)", ErrForbiddenConstraint)
	case c.unique:
		return fmt.Errorf("%w (unique)", ErrForbiddenConstraint)
	case c.indexed:
		return fmt.Errorf("%w (index)", ErrForbiddenConstraint)
	}
	return nil
}
