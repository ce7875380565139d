package validate

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// MaxNameLength bounds player and room names.
const MaxNameLength = 31

const nameRule = "required,max=31,printascii,excludesall=0x7C"

var (
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidAddress = errors.New("invalid bind address")
)

var validate = validator.New()

// PlayerName checks a JOIN name: 1 to 31 printable ASCII characters without
// the field separator.
func PlayerName(name string) error {
	if err := validate.Var(name, nameRule); err != nil {
		return errors.Wrapf(ErrInvalidName, "player name %q", name)
	}
	return nil
}

// RoomName applies the player name rules to a room name.
func RoomName(name string) error {
	if err := validate.Var(name, nameRule); err != nil {
		return errors.Wrapf(ErrInvalidName, "room name %q", name)
	}
	return nil
}

// Port checks a TCP port number.
func Port(port int) error {
	if err := validate.Var(port, "min=1,max=65535"); err != nil {
		return errors.Wrapf(ErrInvalidPort, "%d", port)
	}
	return nil
}

// BindAddress checks an IPv4 or IPv6 literal.
func BindAddress(addr string) error {
	if err := validate.Var(addr, "required,ip"); err != nil {
		return errors.Wrapf(ErrInvalidAddress, "%q", addr)
	}
	return nil
}

// Range is the accepted interval of a numeric configuration key.
type Range struct {
	Min, Max int
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges lists the numeric configuration keys and their accepted values.
var Ranges = map[string]Range{
	"PORT":             {1, 65535},
	"MAX_ROOMS":        {1, 1024},
	"MAX_CLIENTS":      {1, 4096},
	"DISCONNECT_GRACE": {1, 3600},
	"PROBE_INTERVAL":   {1, 60},
}

// stringKeys are the known configuration keys without a numeric range.
var stringKeys = map[string]bool{
	"BIND_ADDRESS":  true,
	"ADMIN_ADDRESS": true,
	"LOG_LEVEL":     true,
	"LOG_FILE":      true,
}

// Result captures the outcome of checking a single configuration file.
// Problems lists what would be clamped or ignored at load time; Notes
// lists the accepted values.
type Result struct {
	File     string
	Valid    bool
	Problems []string
	Notes    []string
}

// ConfigFile checks a key=value server configuration file without loading
// it. Every value the loader would replace with a default is reported.
func ConfigFile(path string) Result {
	result := Result{File: filepath.Base(path), Valid: true}

	values, err := godotenv.Read(path)
	if err != nil {
		result.Valid = false
		result.Problems = append(result.Problems, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := values[key]
		if r, ok := Ranges[key]; ok {
			n, err := cast.ToIntE(raw)
			switch {
			case err != nil:
				result.Problems = append(result.Problems, fmt.Sprintf("%s: %q is not an integer", key, raw))
			case !r.Contains(n):
				result.Problems = append(result.Problems, fmt.Sprintf("%s: %d outside %d..%d", key, n, r.Min, r.Max))
			default:
				result.Notes = append(result.Notes, fmt.Sprintf("✓ %s=%d", key, n))
			}
			continue
		}
		if !stringKeys[key] {
			result.Problems = append(result.Problems, fmt.Sprintf("%s: unknown key", key))
			continue
		}
		if key == "BIND_ADDRESS" {
			if err := BindAddress(raw); err != nil {
				result.Problems = append(result.Problems, fmt.Sprintf("%s: %q is not an IP address", key, raw))
				continue
			}
		}
		result.Notes = append(result.Notes, fmt.Sprintf("✓ %s=%s", key, raw))
	}

	result.Valid = len(result.Problems) == 0
	return result
}
