package terraform

import (
	"fmt"
	"strings"
	"unicode"
)

// namer produces unique Terraform identifiers.
type namer struct {
	seen map[string]int
}

func newNamer() *namer {
	return &namer{seen: make(map[string]int)}
}

// next returns prefix_label sanitized, with a numeric suffix on collision.
func (n *namer) next(prefix, label string) string {
	name := identifier(prefix + "_" + label)
	n.seen[name]++
	if c := n.seen[name]; c > 1 {
		return fmt.Sprintf("%s_%d", name, c)
	}
	return name
}

// identifier maps s onto [a-z0-9_], starting with a letter.
func identifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" || !unicode.IsLetter(rune(out[0])) {
		out = "r_" + out
	}
	return out
}

// alias is the provider alias for a region, e.g. us_east_1.
func alias(region string) string {
	return identifier(region)
}
