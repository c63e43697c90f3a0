package convert

import (
	"slices"
	"strings"
)

// NameFilter decides which tensors belong to the extracted submodule
// and what they are called in the output checkpoint. The zero value
// keeps nothing.
type NameFilter struct {
	// Prefix identifies submodule tensors. Matching is anchored at
	// position zero; a name that merely contains Prefix is not kept.
	Prefix string

	// Replacement substitutes Prefix in kept names, remainder verbatim.
	Replacement string

	// Keep lists exact names carried through unrenamed even though
	// they sit outside Prefix, e.g. a standalone output head.
	Keep []string
}

// Rename reports whether name survives the filter and, if so, the
// identifier it gets in the output checkpoint.
func (f NameFilter) Rename(name string) (string, bool) {
	if f.Prefix != "" && strings.HasPrefix(name, f.Prefix) {
		return f.Replacement + name[len(f.Prefix):], true
	}

	if slices.Contains(f.Keep, name) {
		return name, true
	}

	return "", false
}
