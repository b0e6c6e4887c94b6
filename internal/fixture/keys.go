package fixture

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Placeholder is replaced by the unique token of the case it appears in.
// "{unique:N}" is replaced by the token of case N of the same scenario, so
// a later case can name a record an earlier one created.
const Placeholder = "{unique}"

var placeholderRE = regexp.MustCompile(`\{unique(?::(\d+))?\}`)

// KeyGenerator produces the unique token of each case. Provide asks for one
// token per case index on every call.
type KeyGenerator interface {
	Generate(caseIndex int) string
}

// UUIDKeys generates time-ordered tokens from UUIDv7, without dashes so
// they are valid in item keys. The case index is ignored.
type UUIDKeys struct{}

// Generate returns a new token.
func (UUIDKeys) Generate(int) string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}

// SequenceKeys maps case index i to "<prefix><i+1>" (four digits), so a
// scenario gets the same tokens whichever scenarios run with it.
type SequenceKeys struct {
	prefix string
}

// NewSequenceKeys creates a generator. An empty prefix means "key".
func NewSequenceKeys(prefix string) *SequenceKeys {
	if prefix == "" {
		prefix = "key"
	}
	return &SequenceKeys{prefix: prefix}
}

// Generate returns the token of case caseIndex.
func (g *SequenceKeys) Generate(caseIndex int) string {
	return fmt.Sprintf("%s%04d", g.prefix, caseIndex+1)
}

// placeholderRefs returns the case indexes s refers to with "{unique:N}".
func placeholderRefs(s string) []int {
	var out []int
	for _, m := range placeholderRE.FindAllStringSubmatch(s, -1) {
		if m[1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = -1
		}
		out = append(out, n)
	}
	return out
}

// expandKeys replaces placeholders in s. own is the token of the case s
// belongs to; keys holds the tokens of every case of the scenario.
func expandKeys(s, own string, keys []string) string {
	return placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		if m == Placeholder {
			return own
		}
		n, err := strconv.Atoi(m[len("{unique:") : len(m)-1])
		if err != nil || n < 0 || n >= len(keys) {
			return m
		}
		return keys[n]
	})
}
