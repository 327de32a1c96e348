// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// idRegex accepts store ids such as `42`, `node_7f3a` or `b1c2-...` and
// temporary ids produced by NewTemp.
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_:.-]*$`)

// isValidName rejects path-like names that would be confusing in logs and keys.
func isValidName(raw string) bool {
	if raw == "." || raw == ".." || raw == "-" {
		return false
	}
	return true
}

// Parse validates the textual form of an identifier.
func Parse(raw string) (ID, error) {
	if raw == "" {
		return None, fmt.Errorf("identifier cannot be empty")
	}
	if !idRegex.MatchString(raw) || !isValidName(raw) {
		return None, fmt.Errorf("invalid identifier format: %q", raw)
	}
	id := ID(raw)
	if id.IsTemp() {
		if _, err := uuid.Parse(raw[len(TempPrefix):]); err != nil {
			return None, fmt.Errorf("invalid temporary identifier %q: %w", raw, err)
		}
	}
	return id, nil
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(raw string) ID {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// NewTemp returns a fresh temporary identifier.
func NewTemp() ID {
	return ID(TempPrefix + uuid.NewString())
}

// Generator produces identifiers. The editor uses NewTemp; tests inject
// deterministic sequences.
type Generator func() ID

// Sequence returns a Generator yielding prefix-1, prefix-2, ...
func Sequence(prefix string) Generator {
	n := 0
	return func() ID {
		n++
		return ID(fmt.Sprintf("%s-%d", prefix, n))
	}
}
