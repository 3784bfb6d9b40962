package commands

import (
	"fmt"

	"github.com/ai8future/fieldcrypt"
)

// RunGenerateKey prints a fresh random key in the form accepted with
// FIELDCRYPT_USE_HKDF=false.
//
// Output format:
//   - FIELDCRYPT_KEYS="<url-safe-base64-key>"
//
// To rotate, prepend the new key to the existing list.
func RunGenerateKey(io IOTuple) error {
	key, err := fieldcrypt.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	_, err = fmt.Fprintf(io.Writer, "FIELDCRYPT_KEYS=%q\n", key)
	return err
}

// RunRotate re-encrypts a token under the primary key.
func RunRotate(keys *fieldcrypt.KeySet, io IOTuple, token string) error {
	token, err := readArg(io, token)
	if err != nil {
		return err
	}

	rotated, err := keys.Rotate([]byte(token))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(io.Writer, string(rotated))
	return err
}

// RunNeedsRotation reports which key authenticates token and whether it is
// a retired one.
func RunNeedsRotation(keys *fieldcrypt.KeySet, io IOTuple, token string) error {
	token, err := readArg(io, token)
	if err != nil {
		return err
	}

	idx, err := keys.KeyIndex([]byte(token))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(io.Writer, "key_index=%d needs_rotation=%t\n", idx, idx > 0)
	return err
}
