package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ai8future/fieldcrypt"
	"github.com/ai8future/fieldcrypt/store"
)

// FieldFlags describes a table's fields as given on the command line.
//
//	Encrypted: "notes:text"          encrypted-only fields
//	Dual:      "email:email:email"   name:type[:normalizer], digest indexed
//	Unique:    "email"               dual fields whose digest is unique
type FieldFlags struct {
	Encrypted []string
	Dual      []string
	Unique    []string
}

// BuildCodecs turns flags into codecs bound to keys.
func BuildCodecs(keys *fieldcrypt.KeySet, flags FieldFlags) ([]fieldcrypt.Codec, error) {
	var (
		codecs []fieldcrypt.Codec
		dual   []string
	)

	for _, decl := range flags.Encrypted {
		parts := strings.Split(decl, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: encrypted field %q must be name:type", fieldcrypt.ErrConfiguration, decl)
		}
		typ, err := fieldcrypt.LookupType(parts[1])
		if err != nil {
			return nil, err
		}
		f, err := fieldcrypt.NewEncryptedField(parts[0], typ, keys)
		if err != nil {
			return nil, err
		}
		codecs = append(codecs, f)
	}

	for _, decl := range flags.Dual {
		parts := strings.Split(decl, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("%w: dual field %q must be name:type[:normalizer]", fieldcrypt.ErrConfiguration, decl)
		}
		typ, err := fieldcrypt.LookupType(parts[1])
		if err != nil {
			return nil, err
		}
		opts := []fieldcrypt.FieldOption{fieldcrypt.IndexedDigest()}
		if len(parts) == 3 {
			norm, err := lookupNormalizer(parts[2])
			if err != nil {
				return nil, err
			}
			opts = append(opts, fieldcrypt.WithNormalizer(norm))
		}
		if slices.Contains(flags.Unique, parts[0]) {
			opts = append(opts, fieldcrypt.UniqueDigest())
		}
		f, err := fieldcrypt.NewDualField(parts[0], typ, keys, opts...)
		if err != nil {
			return nil, err
		}
		codecs = append(codecs, f)
		dual = append(dual, parts[0])
	}

	for _, name := range flags.Unique {
		if !slices.Contains(dual, name) {
			return nil, fmt.Errorf("%w: unique field %q is not a dual field", fieldcrypt.ErrConfiguration, name)
		}
	}
	if len(codecs) == 0 {
		return nil, fmt.Errorf("%w: no fields declared", fieldcrypt.ErrConfiguration)
	}
	return codecs, nil
}

// RunCreateTable creates the table backing codecs and prints its columns.
func RunCreateTable(
	ctx context.Context,
	backend store.Backend,
	logger *slog.Logger,
	io IOTuple,
	name string,
	codecs []fieldcrypt.Codec,
) error {
	table, err := store.NewTable(name, backend, codecs, store.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := table.Create(ctx); err != nil {
		return err
	}

	spec := table.Spec()
	_, err = fmt.Fprintf(io.Writer, "created %s (%s)\n", spec.Name, strings.Join(spec.Columns, ", "))
	return err
}

// RunRotateTable re-encrypts every row of a table under the primary key.
func RunRotateTable(
	ctx context.Context,
	backend store.Backend,
	logger *slog.Logger,
	io IOTuple,
	name string,
	codecs []fieldcrypt.Codec,
) error {
	table, err := store.NewTable(name, backend, codecs, store.WithLogger(logger))
	if err != nil {
		return err
	}

	n, err := table.Rotate(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(io.Writer, "rotated %d rows in %s\n", n, name)
	return err
}
