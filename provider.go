package fieldcrypt

// Settings is the key configuration consumed from the application's config
// layer. Precedence: Keys (if non-empty) > FallbackSecret.
type Settings struct {
	// Keys is the ordered key list, primary first. Later keys are retained
	// only for decrypting older data.
	Keys [][]byte

	// FallbackSecret is the process-wide application secret used when Keys
	// is empty.
	FallbackSecret []byte

	// DigestKey is the material the digest key is derived from. It should
	// never change once digests are stored. When empty the digest key comes
	// from the oldest resolved key.
	DigestKey []byte

	// DisableHKDF uses key materials verbatim instead of deriving them.
	// The zero value derives, which is the safe default.
	DisableHKDF bool
}

// ResolveKeys returns the ordered key materials described by s.
// Materials are deep-copied; the caller may zero s afterwards.
func ResolveKeys(s Settings) ([][]byte, error) {
	if len(s.Keys) > 0 {
		out := make([][]byte, len(s.Keys))
		for i, k := range s.Keys {
			out[i] = copyBytes(k)
		}
		return out, nil
	}
	if len(s.FallbackSecret) > 0 {
		return [][]byte{copyBytes(s.FallbackSecret)}, nil
	}
	return nil, ErrNoKeys
}

// NewKeySetFromSettings resolves the materials in s and builds a KeySet,
// honouring s.DigestKey and s.DisableHKDF. Extra options are applied after
// those.
func NewKeySetFromSettings(s Settings, opts ...KeySetOption) (*KeySet, error) {
	materials, err := ResolveKeys(s)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, m := range materials {
			zero(m)
		}
	}()

	all := make([]KeySetOption, 0, len(opts)+2)
	all = append(all, WithDerivation(!s.DisableHKDF))
	if len(s.DigestKey) > 0 {
		all = append(all, WithDigestKey(s.DigestKey))
	}
	all = append(all, opts...)
	return NewKeySet(materials, all...)
}

// KeyProvider supplies ordered key materials from an external source.
// Implement this to load keys from a secrets manager at start-up.
type KeyProvider interface {
	// Keys returns the key materials, primary first.
	Keys() ([][]byte, error)
}

// NewKeySetFromProvider fetches materials from provider and builds a KeySet.
// Keys are fetched once; rotation requires building a new KeySet.
func NewKeySetFromProvider(provider KeyProvider, opts ...KeySetOption) (*KeySet, error) {
	materials, err := provider.Keys()
	if err != nil {
		return nil, err
	}
	return NewKeySet(materials, opts...)
}

// StaticKeyProvider is a simple in-memory implementation of KeyProvider.
// Useful for testing or simple deployments without external key management.
type StaticKeyProvider struct {
	keys [][]byte
}

// NewStaticKeyProvider creates a StaticKeyProvider with the given ordered keys.
// Keys are deep-copied to prevent external modification.
func NewStaticKeyProvider(keys ...[]byte) *StaticKeyProvider {
	keysCopy := make([][]byte, len(keys))
	for i, k := range keys {
		keysCopy[i] = copyBytes(k)
	}
	return &StaticKeyProvider{keys: keysCopy}
}

// Keys implements KeyProvider. Returns copies.
func (p *StaticKeyProvider) Keys() ([][]byte, error) {
	if len(p.keys) == 0 {
		return nil, ErrNoKeys
	}
	out := make([][]byte, len(p.keys))
	for i, k := range p.keys {
		out[i] = copyBytes(k)
	}
	return out, nil
}

// Close zeros out all key material from memory.
// After calling Close, the provider should not be used.
func (p *StaticKeyProvider) Close() {
	for _, key := range p.keys {
		zero(key)
	}
	p.keys = nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
