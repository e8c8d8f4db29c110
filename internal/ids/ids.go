// Package ids provides the 16-byte opaque identifier type shared by every
// entity in the station's domain model (spec.md §3: "Identifiers are
// 16-byte opaque tokens (UUID v4 semantics)").
package ids

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ID is a 16-byte opaque entity identifier with UUID v4 semantics.
type ID [16]byte

// Nil is the zero-value id, used as a sentinel for "no reference".
var Nil ID

// New mints a fresh random identifier.
func New() ID {
	return ID(uuid.New())
}

// Parse decodes a canonical UUID string into an ID.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("ids: parse %q: %w", s, err)
	}
	return ID(u), nil
}

// MustParse is Parse but panics on error; intended for static test fixtures.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == Nil
}

// MarshalText implements encoding.TextMarshaler so IDs round-trip cleanly
// through JSON/YAML without a custom codec per entity.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Set is a small convenience alias used throughout the model for
// identifier sets (e.g. User.Groups, Permission.Allow.Users).
type Set map[ID]struct{}

// NewSet builds a Set from a slice of ids.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is a member of the set.
func (s Set) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the set's members in unspecified order.
func (s Set) Slice() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Add inserts id into the set.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Intersects reports whether s and other share any member.
func (s Set) Intersects(other Set) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for id := range small {
		if big.Contains(id) {
			return true
		}
	}
	return false
}

// Principal is a platform-defined caller identity (spec.md §3: "timestamps
// are nanoseconds since epoch ... except for principals, which are
// platform-defined byte identities"). The host platform's candid glue hands
// these to the station as opaque byte blobs; the station never interprets
// their internal structure, only compares and indexes them.
type Principal string

// PrincipalFromBytes wraps raw principal bytes for use as a map key / index
// entry. The hex encoding keeps the value comparable and printable without
// assuming any internal structure.
func PrincipalFromBytes(b []byte) Principal {
	return Principal(hex.EncodeToString(b))
}

func (p Principal) String() string { return string(p) }

// IsAnonymous mirrors the host platform's well-known anonymous principal
// (a single 0x04 byte), which is never permitted to resolve to a User.
func (p Principal) IsAnonymous() bool {
	return p == Principal(hex.EncodeToString([]byte{0x04}))
}
