package quarry

// column is one SoA lane of an archetype: a dense array holding the value of
// one component kind for every entity row.
type column interface {
	ElementSize() uintptr
	Len() int
	extend()
	swapRemove(row int)
	copyRowTo(dst column, row int)
}

// typedColumn stores component values of a concrete Go type in a plain
// slice. Values never pass through byte reinterpretation, so the garbage
// collector sees them as what they are.
type typedColumn[T any] struct {
	data []T
	size uintptr
}

func (c *typedColumn[T]) ElementSize() uintptr { return c.size }

func (c *typedColumn[T]) Len() int { return len(c.data) }

func (c *typedColumn[T]) extend() {
	var zero T
	c.data = append(c.data, zero)
}

func (c *typedColumn[T]) swapRemove(row int) {
	last := len(c.data) - 1
	if row != last {
		c.data[row] = c.data[last]
	}
	c.data = c.data[:last]
}

func (c *typedColumn[T]) copyRowTo(dst column, row int) {
	d := dst.(*typedColumn[T])
	d.data = append(d.data, c.data[row])
}

// rawColumn stores fixed-size opaque byte elements for kinds registered by
// name and size rather than Go type. Every write is size-checked so a
// wrong-length payload is rejected instead of shearing neighbouring rows.
// Invariant: len(data) == size*count at all times.
type rawColumn struct {
	data  []byte
	size  uintptr
	count int
}

func (c *rawColumn) ElementSize() uintptr { return c.size }

func (c *rawColumn) Len() int { return c.count }

func (c *rawColumn) extend() {
	c.data = append(c.data, make([]byte, int(c.size))...)
	c.count++
}

func (c *rawColumn) swapRemove(row int) {
	s := int(c.size)
	last := c.count - 1
	if row != last {
		copy(c.data[row*s:(row+1)*s], c.data[last*s:(last+1)*s])
	}
	c.data = c.data[:last*s]
	c.count = last
}

func (c *rawColumn) copyRowTo(dst column, row int) {
	d := dst.(*rawColumn)
	s := int(c.size)
	d.data = append(d.data, c.data[row*s:(row+1)*s]...)
	d.count++
}

// at returns a capped view of one element; writes through it cannot spill
// into the next row.
func (c *rawColumn) at(row int) []byte {
	s := int(c.size)
	return c.data[row*s : (row+1)*s : (row+1)*s]
}

// set copies raw into the row, reporting false when the payload length does
// not match the element size.
func (c *rawColumn) set(row int, raw []byte) bool {
	if uintptr(len(raw)) != c.size {
		return false
	}
	copy(c.at(row), raw)
	return true
}
