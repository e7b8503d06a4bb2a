// Package resources implements the resource-vector value type (C1):
// named nonnegative scalar quantities such as cpu and mem that slaves
// advertise, offers carry, and tasks consume.
package resources

import (
	"fmt"
	"sort"
	"strings"
)

// Resources is a mapping from resource kind to nonnegative scalar quantity.
// The zero value is the empty vector. Resources is a value type: all
// operations return a new vector rather than mutating the receiver.
type Resources map[string]float64

// New builds a Resources vector from the given kind/quantity pairs.
func New(kv ...interface{}) Resources {
	if len(kv)%2 != 0 {
		panic("resources.New requires an even number of arguments")
	}
	r := make(Resources, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		kind := kv[i].(string)
		qty := kv[i+1].(float64)
		r[kind] = qty
	}
	return r
}

// Clone returns an independent copy of r.
func (r Resources) Clone() Resources {
	out := make(Resources, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Add returns r + other, componentwise.
func (r Resources) Add(other Resources) Resources {
	out := r.Clone()
	for k, v := range other {
		out[k] += v
	}
	return out
}

// Sub returns r - other, componentwise. It panics if any resulting
// quantity would go negative; callers that need to check this without
// panicking should call Contains first.
func (r Resources) Sub(other Resources) Resources {
	if !r.Contains(other) {
		panic(fmt.Sprintf("resources: cannot subtract %s from %s, would go negative", other, r))
	}
	out := r.Clone()
	for k, v := range other {
		out[k] -= v
		if out[k] == 0 {
			delete(out, k)
		}
	}
	return out
}

// Contains reports whether every kind in other is present in r in at
// least the same quantity. Kinds absent from other are ignored.
func (r Resources) Contains(other Resources) bool {
	for k, v := range other {
		if r[k] < v {
			return false
		}
	}
	return true
}

// IsZero reports whether every quantity in r is zero.
func (r Resources) IsZero() bool {
	for _, v := range r {
		if v != 0 {
			return false
		}
	}
	return true
}

// Equal reports lexical equality: same kinds, same quantities. A kind
// present with quantity zero is treated the same as a kind absent.
func (r Resources) Equal(other Resources) bool {
	for k, v := range r {
		if v != 0 && other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if v != 0 && r[k] != v {
			return false
		}
	}
	return true
}

// String renders the vector with kinds in lexical order, for stable
// logging and test output.
func (r Resources) String() string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if r[k] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%g", k, r[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Sum returns the sum of all quantities in the vector, used by the
// default allocator to rank frameworks by total currently-held resources.
func (r Resources) Sum() float64 {
	var total float64
	for _, v := range r {
		total += v
	}
	return total
}
