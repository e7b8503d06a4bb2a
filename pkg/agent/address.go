package agent

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Address locates an agent within a System's hierarchy, e.g. "/slaves/S-1-7".
type Address struct {
	path string
}

var rootAddress = Address{path: "/"}

// Addr builds an address from URL-safe path components.
func Addr(parts ...interface{}) Address {
	if len(parts) == 0 {
		panic("agent: address must have at least one path component")
	}
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		seg := fmt.Sprint(p)
		if strings.Contains(seg, "/") {
			panic("agent: address components cannot contain '/'")
		}
		segs = append(segs, seg)
	}
	return Address{path: "/" + strings.Join(segs, "/")}
}

func (a Address) String() string { return a.path }

// Local returns the address's final path component.
func (a Address) Local() string { return path.Base(a.path) }

// Child returns the address of a child of a, identified by id.
func (a Address) Child(id interface{}) Address {
	seg := fmt.Sprint(id)
	if strings.Contains(seg, "/") {
		panic("agent: address components cannot contain '/'")
	}
	return Address{path: path.Join(a.path, seg)}
}

// MarshalJSON implements json.Marshaler.
func (a Address) MarshalJSON() ([]byte, error) { return json.Marshal(a.path) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error { return json.Unmarshal(data, &a.path) }
