package fieldcrypt

import (
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF parameters. The salt is fixed so derivation is reproducible across
// processes; the distinct info strings separate encryption and digest keys.
const (
	hkdfSalt       = "fieldcrypt-hkdf-salt"
	infoEncryption = "fieldcrypt-encryption"
	infoDigest     = "fieldcrypt-digest"

	keySize = 32
)

// derivedKeys holds the per-material encryption and digest keys.
type derivedKeys struct {
	encryption [keySize]byte // XSalsa20-Poly1305 key
	digest     [keySize]byte // HMAC-SHA256 key
}

// deriveKeys strengthens arbitrary secret material (any length, any entropy)
// into an encryption key and a digest key:
//   - Encryption key: HKDF(material, salt, info="fieldcrypt-encryption")
//   - Digest key:     HKDF(material, salt, info="fieldcrypt-digest")
func deriveKeys(material []byte) (*derivedKeys, error) {
	keys := &derivedKeys{}
	if err := hkdfDerive(material, infoEncryption, keys.encryption[:]); err != nil {
		return nil, err
	}
	if err := hkdfDerive(material, infoDigest, keys.digest[:]); err != nil {
		return nil, err
	}
	return keys, nil
}

// rawKeys uses material verbatim as the encryption key. The digest key is
// still derived from it so the same bytes never serve two purposes.
func rawKeys(material []byte) (*derivedKeys, error) {
	key, err := decodeRawKey(material)
	if err != nil {
		return nil, err
	}
	keys := &derivedKeys{}
	copy(keys.encryption[:], key)
	if err := hkdfDerive(key, infoDigest, keys.digest[:]); err != nil {
		return nil, err
	}
	zero(key)
	return keys, nil
}

// decodeRawKey accepts exactly 32 raw bytes or the url-safe base64 encoding
// of 32 bytes (the form GenerateKey emits).
func decodeRawKey(material []byte) ([]byte, error) {
	if len(material) == keySize {
		out := make([]byte, keySize)
		copy(out, material)
		return out, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(string(material))
	if err != nil || len(decoded) != keySize {
		return nil, ErrInvalidKey
	}
	return decoded, nil
}

func hkdfDerive(material []byte, info string, out []byte) error {
	reader := hkdf.New(sha256.New, material, []byte(hkdfSalt), []byte(info))
	_, err := io.ReadFull(reader, out)
	return err
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
