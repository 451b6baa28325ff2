package profile

// Ring is a fixed-size pool of preallocated Profile slots. The assembler
// decodes directly into a borrowed slot instead of allocating a new Profile
// per scan line, matching the head's fixed per-profile working set (§4.6).
type Ring struct {
	slots []Profile
	next  int
}

// NewRing preallocates size Profile slots.
func NewRing(size int) *Ring {
	return &Ring{slots: make([]Profile, size)}
}

// Borrow returns the next slot in round-robin order, with its points reset
// to the default (NaN, NaN, InvalidBrightness) array before handing it back.
func (r *Ring) Borrow() *Profile {
	p := &r.slots[r.next]
	r.next = (r.next + 1) % len(r.slots)

	resetPoints(&p.Points)
	p.ValidPointCount = 0
	p.Encoders = p.Encoders[:0]
	p.Image = p.Image[:0]
	p.SubpixelRows = p.SubpixelRows[:0]
	return p
}

// Len returns the number of preallocated slots.
func (r *Ring) Len() int {
	return len(r.slots)
}
