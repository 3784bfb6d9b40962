package sqlstore

import (
	"fmt"

	"github.com/ai8future/fieldcrypt"
)

// Dialect holds the SQL differences between supported databases.
type Dialect struct {
	Name        string
	Placeholder fieldcrypt.Placeholder
	// IDType is the type of the primary key column.
	IDType string
	// ValueType holds ciphertext, which has no length bound.
	ValueType string
	// KeyType holds digest columns that carry a unique constraint or index.
	KeyType string
}

var (
	// Postgres serves both lib/pq ("postgres") and pgx ("pgx").
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: fieldcrypt.DollarPlaceholder,
		IDType:      "VARCHAR(36)",
		ValueType:   "BYTEA",
		KeyType:     "BYTEA",
	}

	// MySQL cannot index an unbounded BLOB, so digest columns are
	// VARBINARY sized for a hex HMAC-SHA256.
	MySQL = Dialect{
		Name:        "mysql",
		Placeholder: fieldcrypt.QuestionPlaceholder,
		IDType:      "VARCHAR(36)",
		ValueType:   "LONGBLOB",
		KeyType:     "VARBINARY(64)",
	}
)

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("%w: unsupported database driver %q", fieldcrypt.ErrConfiguration, driver)
	}
}
