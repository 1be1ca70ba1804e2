package mir

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Equal reports whether two modules are observably equivalent: the same
// declarations, types and resolved references. Empty and nil slices are
// treated alike, so a decoded module equals the module that was encoded.
func Equal(a, b *Module) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// Diff renders the differences between two modules, or "" when Equal.
func Diff(a, b *Module) string {
	return cmp.Diff(a, b, cmpopts.EquateEmpty())
}
