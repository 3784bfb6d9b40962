// Package fieldcrypt provides transparent field-level encryption for
// persisted records, with a deterministic digest companion column for
// equality lookups on encrypted data.
//
// Values are encrypted before they reach storage and decrypted after they
// are read, while the rest of the application keeps working with ordinary
// typed values.
//
// # Keys
//
// A KeySet is an ordered list of keys, primary first. New values are
// encrypted with the primary key; decryption tries each key in order, which
// is how rotation works: prepend the new key, keep the old one until every
// row has been rewritten.
//
//	keys, err := fieldcrypt.NewKeySetFromSettings(fieldcrypt.Settings{
//	    Keys: [][]byte{[]byte("key2"), []byte("key1")},
//	})
//
// Digests use one digest key that stays put while encryption keys rotate,
// so unique digest constraints keep holding across a rotation. Configure it
// with WithDigestKey (Settings.DigestKey); without one it is derived from
// the oldest key in the list, which must then be pinned as the digest key
// before it is removed.
//
// By default every key material is strengthened with HKDF-SHA256, so any
// secret string is acceptable. With WithRawKeys (or Settings.DisableHKDF)
// each material must already be a 32-byte key; see GenerateKey.
//
// # Encryption
//
// Tokens use XSalsa20-Poly1305 (NaCl secretbox) with a fresh 24-byte random
// nonce per call and carry a version byte and creation timestamp. They are
// url-safe base64, so they fit TEXT as well as BYTEA columns.
//
// # Encrypted fields
//
// An EncryptedField stores one ciphertext column. Because the same value
// encrypts differently every time, the column can never be a primary key,
// unique or indexed, and every lookup other than IS NULL fails with ErrQuery:
//
//	notes, err := fieldcrypt.NewEncryptedField("notes", fieldcrypt.Text, keys)
//	stored, err := notes.Encode("sensitive data")
//	value, err := notes.Decode(stored)
//
// # Dual fields
//
// A DualField also stores an HMAC-SHA256 digest of the value's canonical
// form. Equality and membership predicates are rewritten to the digest
// column; ordering, range and pattern predicates fail with ErrQuery.
//
//	email, err := fieldcrypt.NewDualField("email", fieldcrypt.Email, keys,
//	    fieldcrypt.UniqueDigest(),
//	    fieldcrypt.WithNormalizer(fieldcrypt.NormalizeEmail),
//	)
//	sealed, err := email.Encode("Alice@Example.com")
//	// sealed.Ciphertext -> email_encrypted, sealed.Digest -> email_idx
//
//	cond, err := email.SearchCondition(fieldcrypt.Eq("email", "alice@example.com"), 1)
//	rows, err := db.Query("SELECT * FROM users WHERE "+cond.SQL, cond.Args...)
//
// # NULL Handling
//
// NULL is never encrypted: Encode(nil) returns nil and Decode(nil) returns
// nil, nil. A NULL dual value has a NULL digest, so Eq(field, nil) becomes
// IS NULL on the digest column.
//
// # Errors
//
// Failures fall into three categories, each matchable with errors.Is:
// ErrConfiguration (construction time), ErrDecryption (no key
// authenticates a token) and ErrQuery (a lookup the field cannot answer).
// Nothing is retried and nothing falls back to plaintext.
package fieldcrypt
