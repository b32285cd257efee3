package tensor

import "fmt"

// BoolMask marks, per batch entry and slot, whether the slot holds a real
// molecule (true) or padding (false).
type BoolMask struct {
	B     int
	Slots int
	Data  []bool
}

// NewBoolMask creates an all-false mask.
func NewBoolMask(b, slots int) (*BoolMask, error) {
	if b <= 0 {
		return nil, fmt.Errorf("tensor: batch size must be positive, got %d", b)
	}
	if slots < 0 {
		return nil, fmt.Errorf("tensor: slots must be non-negative, got %d", slots)
	}
	return &BoolMask{B: b, Slots: slots, Data: make([]bool, b*slots)}, nil
}

// MustNewBoolMask is NewBoolMask that panics on error.
func MustNewBoolMask(b, slots int) *BoolMask {
	m, err := NewBoolMask(b, slots)
	if err != nil {
		panic(err)
	}
	return m
}

// FullMask creates an all-true mask (no padding).
func FullMask(b, slots int) (*BoolMask, error) {
	m, err := NewBoolMask(b, slots)
	if err != nil {
		return nil, err
	}
	for i := range m.Data {
		m.Data[i] = true
	}
	return m, nil
}

// Row returns the slot flags for batch entry i as a slice view.
func (m *BoolMask) Row(i int) []bool {
	return m.Data[i*m.Slots : (i+1)*m.Slots]
}

// At reports whether slot p of entry i holds a real molecule.
func (m *BoolMask) At(i, p int) bool { return m.Data[i*m.Slots+p] }

// Set marks slot p of entry i.
func (m *BoolMask) Set(i, p int, v bool) { m.Data[i*m.Slots+p] = v }

// TrueCounts returns, per batch entry, the number of real slots.
func (m *BoolMask) TrueCounts() []int {
	counts := make([]int, m.B)
	for i := 0; i < m.B; i++ {
		for _, v := range m.Row(i) {
			if v {
				counts[i]++
			}
		}
	}
	return counts
}

// ConcatMasks concatenates masks along the slot axis.
func ConcatMasks(masks ...*BoolMask) (*BoolMask, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("tensor: ConcatMasks requires at least one mask")
	}
	b := masks[0].B
	total := 0
	for _, m := range masks {
		if m.B != b {
			return nil, fmt.Errorf("tensor: ConcatMasks batch mismatch: %d vs %d", b, m.B)
		}
		total += m.Slots
	}
	out, err := NewBoolMask(b, total)
	if err != nil {
		return nil, err
	}
	for i := 0; i < b; i++ {
		dst := out.Row(i)
		off := 0
		for _, m := range masks {
			copy(dst[off:], m.Row(i))
			off += m.Slots
		}
	}
	return out, nil
}
