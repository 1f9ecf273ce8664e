package geometry

import "fmt"

// GeometryError reports a box that broke the ordering invariant after a
// coordinate transform. It is an internal-consistency failure and is never
// recovered from.
type GeometryError struct {
	Op  string
	Box Box
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry invariant violated after %s: box %s", e.Op, e.Box)
}

// Check returns a *GeometryError when b is not a valid box.
func Check(op string, b Box) error {
	if !b.Valid() {
		return &GeometryError{Op: op, Box: b}
	}
	return nil
}
