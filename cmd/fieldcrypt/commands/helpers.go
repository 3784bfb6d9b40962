// Package commands contains CLI command implementations for fieldcrypt.
package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ai8future/fieldcrypt"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// readArg returns arg, or the first line of the reader when arg is "-".
func readArg(io IOTuple, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(io.Reader).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseValue converts command-line text into the Go value typ expects.
func parseValue(typ fieldcrypt.Type, s string) (any, error) {
	switch typ.Name() {
	case "integer":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", s, err)
		}
		return n, nil
	case "date":
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t, nil
	case "datetime":
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("invalid datetime %q: %w", s, err)
		}
		return t, nil
	case "bytes":
		return []byte(s), nil
	default:
		return s, nil
	}
}

// formatValue renders a decoded value for output.
func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

var normalizers = map[string]fieldcrypt.Normalizer{
	"none":  fieldcrypt.NormalizeNone,
	"trim":  fieldcrypt.NormalizeTrim,
	"lower": fieldcrypt.NormalizeLower,
	"email": fieldcrypt.NormalizeEmail,
	"phone": fieldcrypt.NormalizePhone,
}

// lookupNormalizer returns the normalizer registered under name.
// An empty name means none.
func lookupNormalizer(name string) (fieldcrypt.Normalizer, error) {
	if name == "" {
		return nil, nil
	}
	n, ok := normalizers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown normalizer %q", fieldcrypt.ErrConfiguration, name)
	}
	return n, nil
}
