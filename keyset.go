package fieldcrypt

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySet is an ordered, non-empty list of keys. The first key is primary:
// it encrypts new values. Later keys are retained only so that data written
// before a rotation still decrypts.
//
// Digests use a single digest key that does not follow the primary key, so
// a value digests identically before and after a rotation. It is derived
// from the material given with WithDigestKey or, without one, from the
// oldest (last) key in the list.
// It is safe for concurrent use.
type KeySet struct {
	keys    []*derivedKeys
	digest  [keySize]byte
	pinned  bool
	derived bool
	logger  *slog.Logger
	now     func() time.Time
	closed  atomic.Bool
}

// NewKeySet builds a KeySet from ordered key materials, primary first.
//
// By default each material is passed through HKDF-SHA256, so any secret
// (for example an application secret string) is acceptable. With
// WithRawKeys each material must already be a 32-byte key.
//
// Example:
//
//	keys, err := fieldcrypt.NewKeySet([][]byte{
//	    []byte("new-secret"), // primary
//	    []byte("old-secret"), // decrypt only
//	})
func NewKeySet(materials [][]byte, opts ...KeySetOption) (*KeySet, error) {
	cfg := defaultKeySetConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(materials) == 0 {
		return nil, ErrNoKeys
	}

	keys := make([]*derivedKeys, 0, len(materials))
	for i, material := range materials {
		dk, err := newDerivedKeys(material, cfg.derive)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, dk)
	}

	ks := &KeySet{
		keys:    keys,
		derived: cfg.derive,
		logger:  cfg.logger,
		now:     cfg.now,
	}

	source := "oldest_key"
	if cfg.digestMaterial != nil {
		if len(cfg.digestMaterial) == 0 {
			return nil, fmt.Errorf("%w: empty digest key", ErrConfiguration)
		}
		dk, err := newDerivedKeys(cfg.digestMaterial, cfg.derive)
		zero(cfg.digestMaterial)
		if err != nil {
			return nil, fmt.Errorf("digest key: %w", err)
		}
		ks.digest = dk.digest
		ks.pinned = true
		zero(dk.encryption[:])
		zero(dk.digest[:])
		source = "pinned"
	} else {
		ks.digest = keys[len(keys)-1].digest
	}
	// Only the chosen digest key is kept.
	for _, dk := range keys {
		zero(dk.digest[:])
	}

	cfg.logger.Debug("key set built",
		slog.Int("keys", len(keys)),
		slog.Bool("hkdf", cfg.derive),
		slog.String("digest_key", source),
	)
	if len(keys) > 1 && !ks.pinned {
		cfg.logger.Info("digest key derived from the oldest key; pin it with a digest key before removing that key",
			slog.Int("key_index", len(keys)-1),
		)
	}

	return ks, nil
}

func newDerivedKeys(material []byte, derive bool) (*derivedKeys, error) {
	if derive {
		return deriveKeys(material)
	}
	return rawKeys(material)
}

// Len returns the number of keys, including retired ones.
func (k *KeySet) Len() int {
	return len(k.keys)
}

// Derived reports whether keys were strengthened with HKDF.
func (k *KeySet) Derived() bool {
	return k.derived
}

// DigestKeyPinned reports whether the digest key came from WithDigestKey
// rather than from the oldest key in the list.
func (k *KeySet) DigestKeyPinned() bool {
	return k.pinned
}

// Encrypt encrypts plaintext with the primary key.
// Returns nil, nil for nil plaintext (NULL preservation).
//
// Each call draws a fresh random nonce, so identical plaintexts produce
// different tokens.
func (k *KeySet) Encrypt(plaintext []byte) ([]byte, error) {
	if k.closed.Load() {
		return nil, ErrKeySetClosed
	}
	if plaintext == nil {
		return nil, nil
	}
	return k.encryptWith(k.keys[0], plaintext), nil
}

func (k *KeySet) encryptWith(dk *derivedKeys, plaintext []byte) []byte {
	ts := uint64(k.now().Unix())
	nonce := generateNonce()
	sealed := secretbox.Seal(nil, formatInner(ts, plaintext), &nonce, &dk.encryption)
	return formatToken(ts, nonce, sealed)
}

// Decrypt authenticates and decrypts a token, trying each key in order and
// returning on the first one that authenticates.
// Returns nil, nil for a nil token (NULL preservation).
func (k *KeySet) Decrypt(token []byte) ([]byte, error) {
	plaintext, _, err := k.open(token)
	return plaintext, err
}

// KeyIndex returns the position of the key that authenticates token:
// 0 for the primary key, higher for retired keys.
func (k *KeySet) KeyIndex(token []byte) (int, error) {
	if token == nil {
		return 0, ErrWasNull
	}
	_, idx, err := k.open(token)
	return idx, err
}

func (k *KeySet) open(token []byte) ([]byte, int, error) {
	if k.closed.Load() {
		return nil, -1, ErrKeySetClosed
	}
	if token == nil {
		return nil, -1, nil
	}

	ts, nonce, sealed, err := parseToken(token)
	if err != nil {
		return nil, -1, err
	}

	for i, dk := range k.keys {
		inner, ok := secretbox.Open(nil, sealed, &nonce, &dk.encryption)
		if !ok {
			continue
		}
		innerTS, payload, err := parseInner(inner)
		if err != nil {
			return nil, -1, err
		}
		if innerTS != ts {
			return nil, -1, ErrTokenTampered
		}
		if i > 0 {
			k.logger.Debug("token opened with retired key", slog.Int("key_index", i))
		}
		if payload == nil {
			payload = []byte{}
		}
		return payload, i, nil
	}

	return nil, -1, ErrDecryption
}

// Digest computes an HMAC-SHA256 digest of canonical under the digest key,
// hex encoded (64 bytes). Returns nil for nil input.
//
// Same input + same digest key = same digest, always. Prepending a new
// encryption key does not change it.
func (k *KeySet) Digest(canonical []byte) ([]byte, error) {
	if k.closed.Load() {
		return nil, ErrKeySetClosed
	}
	if canonical == nil {
		return nil, nil
	}
	return computeDigest(&k.digest, canonical), nil
}

// Close zeros all key material. Subsequent calls fail with ErrKeySetClosed.
func (k *KeySet) Close() {
	k.closed.Store(true)
	for _, dk := range k.keys {
		zero(dk.encryption[:])
	}
	zero(k.digest[:])
}

// GenerateKey returns a fresh random key in the url-safe base64 form
// accepted by WithRawKeys.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

func computeDigest(key *[keySize]byte, data []byte) []byte {
	h := hmac.New(sha256.New, key[:])
	h.Write(data)
	sum := h.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}

// generateNonce generates a cryptographically secure random 24-byte nonce.
// Panics if the system's random source fails (unrecoverable).
func generateNonce() [nonceSize]byte {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return nonce
}
