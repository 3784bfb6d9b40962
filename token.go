package fieldcrypt

import (
	"encoding/base64"
	"encoding/binary"
	"time"
)

// Token format (before base64url encoding):
// [version:1][timestamp:8][nonce:24][secretbox(innerHeader + payload)]
//
// Inner plaintext format (before encryption):
// [timestamp:8][payload]
//
// The inner timestamp is authenticated by secretbox and must equal the
// outer one. The version byte selects the layout and is checked on parse.

const (
	tokenVersion byte = 0x81

	timestampSize = 8
	nonceSize     = 24
	overheadSize  = 16 // Poly1305 tag

	headerSize = 1 + timestampSize + nonceSize
)

var tokenEncoding = base64.URLEncoding

// formatToken assembles and encodes the outer token.
func formatToken(ts uint64, nonce [nonceSize]byte, sealed []byte) []byte {
	raw := make([]byte, 0, headerSize+len(sealed))
	raw = append(raw, tokenVersion)
	raw = binary.BigEndian.AppendUint64(raw, ts)
	raw = append(raw, nonce[:]...)
	raw = append(raw, sealed...)

	out := make([]byte, tokenEncoding.EncodedLen(len(raw)))
	tokenEncoding.Encode(out, raw)
	return out
}

// parseToken decodes the outer token.
// Returns timestamp, nonce, sealed box (ciphertext + tag), and error.
func parseToken(token []byte) (ts uint64, nonce [nonceSize]byte, sealed []byte, err error) {
	raw := make([]byte, tokenEncoding.DecodedLen(len(token)))
	n, decErr := tokenEncoding.Decode(raw, token)
	if decErr != nil {
		err = ErrInvalidToken
		return
	}
	raw = raw[:n]

	// Minimum: header + inner timestamp + tag (empty payload is allowed)
	if len(raw) < headerSize+timestampSize+overheadSize {
		err = ErrInvalidToken
		return
	}
	if raw[0] != tokenVersion {
		err = ErrInvalidToken
		return
	}

	ts = binary.BigEndian.Uint64(raw[1 : 1+timestampSize])
	copy(nonce[:], raw[1+timestampSize:headerSize])
	sealed = raw[headerSize:]
	return
}

// formatInner prepends the timestamp to the payload.
func formatInner(ts uint64, payload []byte) []byte {
	inner := make([]byte, 0, timestampSize+len(payload))
	inner = binary.BigEndian.AppendUint64(inner, ts)
	return append(inner, payload...)
}

// parseInner splits the authenticated timestamp from the payload.
func parseInner(inner []byte) (ts uint64, payload []byte, err error) {
	if len(inner) < timestampSize {
		err = ErrInvalidToken
		return
	}
	ts = binary.BigEndian.Uint64(inner[:timestampSize])
	payload = inner[timestampSize:]
	return
}

// TokenTimestamp returns the creation time embedded in a token without
// decrypting it. The value is only trustworthy after Decrypt succeeds.
func TokenTimestamp(token []byte) (time.Time, error) {
	ts, _, _, err := parseToken(token)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}
