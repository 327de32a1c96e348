package nodeid

import "strings"

// TempPrefix marks identifiers that have not been confirmed by a store yet.
const TempPrefix = "tmp-"

// ID identifies a node or an edge. The zero value means "no identifier".
type ID string

// None is the empty identifier, used for absent parent or owner references.
const None ID = ""

// String returns the canonical textual form.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool {
	return id == None
}

// IsTemp reports whether the identifier was generated locally and still
// awaits the store-assigned replacement.
func (id ID) IsTemp() bool {
	return strings.HasPrefix(string(id), TempPrefix)
}
