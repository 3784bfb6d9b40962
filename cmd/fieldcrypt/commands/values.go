package commands

import (
	"fmt"

	"github.com/ai8future/fieldcrypt"
)

// RunEncrypt encrypts value as typName and prints the token.
func RunEncrypt(keys *fieldcrypt.KeySet, io IOTuple, typName, value string) error {
	field, err := newField(keys, typName)
	if err != nil {
		return err
	}
	value, err = readArg(io, value)
	if err != nil {
		return err
	}

	v, err := parseValue(field.Type(), value)
	if err != nil {
		return err
	}
	token, err := field.Encode(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(io.Writer, string(token))
	return err
}

// RunDecrypt decrypts a token written as typName and prints the value.
func RunDecrypt(keys *fieldcrypt.KeySet, io IOTuple, typName, token string) error {
	field, err := newField(keys, typName)
	if err != nil {
		return err
	}
	token, err = readArg(io, token)
	if err != nil {
		return err
	}

	v, err := field.Decode([]byte(token))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(io.Writer, formatValue(v))
	return err
}

// RunDigest prints the lookup digest of value, as stored in the digest
// column of a dual field declared with the same type and normalizer.
func RunDigest(keys *fieldcrypt.KeySet, io IOTuple, typName, normalizer, value string) error {
	typ, err := fieldcrypt.LookupType(typName)
	if err != nil {
		return err
	}
	norm, err := lookupNormalizer(normalizer)
	if err != nil {
		return err
	}
	field, err := fieldcrypt.NewDualField("value", typ, keys, fieldcrypt.WithNormalizer(norm))
	if err != nil {
		return err
	}
	value, err = readArg(io, value)
	if err != nil {
		return err
	}

	v, err := parseValue(typ, value)
	if err != nil {
		return err
	}
	digest, err := field.Digest(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(io.Writer, string(digest))
	return err
}

func newField(keys *fieldcrypt.KeySet, typName string) (*fieldcrypt.EncryptedField, error) {
	typ, err := fieldcrypt.LookupType(typName)
	if err != nil {
		return nil, err
	}
	return fieldcrypt.NewEncryptedField("value", typ, keys)
}
