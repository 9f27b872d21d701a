package linsolve

import (
	"fmt"
	"strings"
)

// Kind enumerates the linear-solver backends.
type Kind int

const (
	None Kind = iota
	DenseDirect
	IterativeSparse
	TotalPivotDirect
)

// Info names and describes a backend for diagnostics.
type Info struct {
	Kind        Kind
	Name        string
	Description string
}

var infos = []Info{
	{None, "none", "no solver; every solve fails"},
	{DenseDirect, "dense", "dense LU factorization with partial pivoting"},
	{IterativeSparse, "iterative", "compressed sparse rows with BiCGSTAB"},
	{TotalPivotDirect, "total_pivot", "Gaussian elimination with full pivoting"},
}

// Table returns the static backend table in Kind order.
func Table() []Info {
	out := make([]Info, len(infos))
	copy(out, infos)
	return out
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(infos) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return infos[k].Name
}

// Description returns the human-readable description of k.
func (k Kind) Description() string {
	if k < 0 || int(k) >= len(infos) {
		return ""
	}
	return infos[k].Description
}

// ParseKind looks a backend up by name. Matching ignores case and
// accepts hyphens for underscores.
func ParseKind(name string) (Kind, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, info := range infos {
		if info.Name == key {
			return info.Kind, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}
