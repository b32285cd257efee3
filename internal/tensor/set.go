package tensor

import "fmt"

// Set is a batch of padded molecule sets with shape [B, Slots, Dim]: one
// fixed-size slot grid per batch entry, each slot holding one Dim-wide
// embedding or descriptor. Slots may be zero (absent support branch).
type Set struct {
	B     int
	Slots int
	Dim   int
	Data  []float64 // row-major: entry, then slot, then feature
}

// NewSet creates a zeroed set.
func NewSet(b, slots, dim int) (*Set, error) {
	if b <= 0 {
		return nil, fmt.Errorf("tensor: batch size must be positive, got %d", b)
	}
	if slots < 0 {
		return nil, fmt.Errorf("tensor: slots must be non-negative, got %d", slots)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("tensor: dim must be positive, got %d", dim)
	}
	return &Set{B: b, Slots: slots, Dim: dim, Data: make([]float64, b*slots*dim)}, nil
}

// MustNewSet is NewSet that panics on error. Intended for main() and test
// setup only.
func MustNewSet(b, slots, dim int) *Set {
	s, err := NewSet(b, slots, dim)
	if err != nil {
		panic(err)
	}
	return s
}

// Entry returns batch entry i as a [Slots, Dim] matrix view sharing the
// backing data; writes through the view mutate the set.
func (s *Set) Entry(i int) *Matrix {
	stride := s.Slots * s.Dim
	return &Matrix{Rows: s.Slots, Cols: s.Dim, Data: s.Data[i*stride : (i+1)*stride]}
}

// Row returns the embedding at (entry, slot) as a slice view.
func (s *Set) Row(entry, slot int) []float64 {
	off := (entry*s.Slots + slot) * s.Dim
	return s.Data[off : off+s.Dim]
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	out := &Set{B: s.B, Slots: s.Slots, Dim: s.Dim, Data: make([]float64, len(s.Data))}
	copy(out.Data, s.Data)
	return out
}

// ConcatSets concatenates sets along the slot axis. All operands must share
// batch size and feature dimension.
func ConcatSets(sets ...*Set) (*Set, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("tensor: ConcatSets requires at least one set")
	}
	b, dim := sets[0].B, sets[0].Dim
	total := 0
	for _, s := range sets {
		if s.B != b || s.Dim != dim {
			return nil, fmt.Errorf("tensor: ConcatSets shape mismatch: [%d,·,%d] vs [%d,·,%d]", b, dim, s.B, s.Dim)
		}
		total += s.Slots
	}
	out, err := NewSet(b, total, dim)
	if err != nil {
		return nil, err
	}
	for i := 0; i < b; i++ {
		dst := out.Entry(i).Data
		off := 0
		for _, s := range sets {
			src := s.Entry(i).Data
			copy(dst[off:off+len(src)], src)
			off += len(src)
		}
	}
	return out, nil
}

// SplitSets splits a set along the slot axis at the given slot widths. It is
// the inverse of ConcatSets: splitting at the widths used for concatenation
// reproduces the original operands.
func SplitSets(s *Set, slots ...int) ([]*Set, error) {
	total := 0
	for _, n := range slots {
		if n < 0 {
			return nil, fmt.Errorf("tensor: negative split width %d", n)
		}
		total += n
	}
	if total != s.Slots {
		return nil, fmt.Errorf("tensor: split widths sum to %d, set has %d slots", total, s.Slots)
	}
	parts := make([]*Set, len(slots))
	for k, n := range slots {
		part, err := NewSet(s.B, n, s.Dim)
		if err != nil {
			return nil, err
		}
		parts[k] = part
	}
	for i := 0; i < s.B; i++ {
		src := s.Entry(i).Data
		off := 0
		for k := range parts {
			dst := parts[k].Entry(i).Data
			copy(dst, src[off:off+len(dst)])
			off += len(dst)
		}
	}
	return parts, nil
}

// Flatten reinterprets [B, Slots, Dim] as a [B*Slots, Dim] matrix sharing the
// backing data: every molecule across every batch entry becomes one row, in
// batch-major order. Unflatten with the same batch size is its exact inverse.
func Flatten(s *Set) *Matrix {
	return &Matrix{Rows: s.B * s.Slots, Cols: s.Dim, Data: s.Data}
}

// Unflatten reinterprets a [B*Slots, Dim] matrix as [B, Slots, Dim], sharing
// the backing data. The row count must divide evenly by the batch size.
func Unflatten(m *Matrix, b int) (*Set, error) {
	if b <= 0 {
		return nil, fmt.Errorf("tensor: batch size must be positive, got %d", b)
	}
	if m.Rows%b != 0 {
		return nil, fmt.Errorf("tensor: cannot unflatten %d rows into batch size %d", m.Rows, b)
	}
	return &Set{B: b, Slots: m.Rows / b, Dim: m.Cols, Data: m.Data}, nil
}

// WithConstCols returns a copy of the set widened by extra constant columns
// holding value v. Used to append the activity-encoding signal.
func (s *Set) WithConstCols(extra int, v float64) (*Set, error) {
	if extra < 0 {
		return nil, fmt.Errorf("tensor: extra columns must be non-negative, got %d", extra)
	}
	out, err := NewSet(s.B, s.Slots, s.Dim+extra)
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.B; i++ {
		for p := 0; p < s.Slots; p++ {
			dst := out.Row(i, p)
			copy(dst, s.Row(i, p))
			for k := s.Dim; k < s.Dim+extra; k++ {
				dst[k] = v
			}
		}
	}
	return out, nil
}

// TrimCols returns a copy of the set keeping only the first dim feature
// columns. Inverse of WithConstCols on the kept columns.
func (s *Set) TrimCols(dim int) (*Set, error) {
	if dim <= 0 || dim > s.Dim {
		return nil, fmt.Errorf("tensor: cannot trim %d-wide set to %d columns", s.Dim, dim)
	}
	out, err := NewSet(s.B, s.Slots, dim)
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.B; i++ {
		for p := 0; p < s.Slots; p++ {
			copy(out.Row(i, p), s.Row(i, p)[:dim])
		}
	}
	return out, nil
}
