package weave

import "fmt"

// SiteID names a participant. Zero means unassigned.
type SiteID uint32

// ID is a globally unique identifier for an atom or an item, combining a
// per-site logical clock and the ID of the site that created it.
type ID struct {
	Clock uint32 `json:"clock"`
	Site  SiteID `json:"site"`
}

// NullID is the sentinel "no predecessor" identifier.
func NullID() ID { return ID{} }

// IsNull reports whether id is the null sentinel.
func (id ID) IsNull() bool { return id == ID{} }

// Compare orders ids by clock, then by site.
func (id ID) Compare(other ID) int {
	switch {
	case id.Clock < other.Clock:
		return -1
	case id.Clock > other.Clock:
		return +1
	case id.Site < other.Site:
		return -1
	case id.Site > other.Site:
		return +1
	}
	return 0
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Site, id.Clock)
}

// Clock is a monotonic per-site counter used to stamp new identifiers. The
// first value handed out is 1.
type Clock uint32

// Next advances the clock and returns the new value.
func (c *Clock) Next() uint32 {
	*c++
	return uint32(*c)
}

// Seen makes sure Next never returns v or anything below it.
func (c *Clock) Seen(v uint32) {
	if Clock(v) > *c {
		*c = Clock(v)
	}
}
