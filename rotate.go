package fieldcrypt

// Rotate re-encrypts a token under the current primary key.
// Use this after prepending a new key to migrate existing rows, then drop
// the old key once nothing needs it.
//
// Returns nil if token is nil (NULL stays NULL).
func (k *KeySet) Rotate(token []byte) ([]byte, error) {
	if token == nil {
		return nil, nil
	}
	plaintext, err := k.Decrypt(token)
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)
	return k.Encrypt(plaintext)
}

// NeedsRotation reports whether token is only readable with a retired key.
// Returns false for a nil token (NULL values don't need rotation).
func (k *KeySet) NeedsRotation(token []byte) (bool, error) {
	if token == nil {
		return false, nil
	}
	idx, err := k.KeyIndex(token)
	if err != nil {
		return false, err
	}
	return idx > 0, nil
}

// Rotate re-encrypts a stored value under the primary key.
func (f *EncryptedField) Rotate(ciphertext []byte) ([]byte, error) {
	return f.keys.Rotate(ciphertext)
}

// Rotate re-encrypts a stored value under the primary key and recomputes
// its digest under the current digest key. Returns an empty Sealed if
// ciphertext is nil.
func (f *DualField) Rotate(ciphertext []byte) (*Sealed, error) {
	if ciphertext == nil {
		return &Sealed{}, nil
	}
	canonical, err := f.keys.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	defer zero(canonical)

	newCiphertext, err := f.keys.Encrypt(canonical)
	if err != nil {
		return nil, err
	}
	digest, err := f.keys.Digest(f.normalize(canonical))
	if err != nil {
		return nil, err
	}
	return &Sealed{Ciphertext: newCiphertext, Digest: digest}, nil
}
