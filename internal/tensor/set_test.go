package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSet(t *testing.T, rng *rand.Rand, b, slots, dim int) *Set {
	t.Helper()
	s, err := NewSet(b, slots, dim)
	require.NoError(t, err)
	for i := range s.Data {
		s.Data[i] = rng.NormFloat64()
	}
	return s
}

func TestConcatThenSplitRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	query := randomSet(t, rng, 3, 1, 5)
	actives := randomSet(t, rng, 3, 4, 5)
	inactives := randomSet(t, rng, 3, 2, 5)

	joint, err := ConcatSets(query, actives, inactives)
	require.NoError(t, err)
	assert.Equal(t, 7, joint.Slots)

	parts, err := SplitSets(joint, 1, 4, 2)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, query.Data, parts[0].Data)
	assert.Equal(t, actives.Data, parts[1].Data)
	assert.Equal(t, inactives.Data, parts[2].Data)
}

func TestConcatSplitWithEmptyBranch(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	query := randomSet(t, rng, 2, 1, 3)
	actives := randomSet(t, rng, 2, 2, 3)
	inactives := randomSet(t, rng, 2, 0, 3)

	joint, err := ConcatSets(query, actives, inactives)
	require.NoError(t, err)
	assert.Equal(t, 3, joint.Slots)

	parts, err := SplitSets(joint, 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, parts[2].Slots)
	assert.Len(t, parts[2].Data, 0)
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, shape := range []struct{ b, slots, dim int }{
		{1, 1, 1},
		{2, 3, 4},
		{5, 7, 2},
	} {
		s := randomSet(t, rng, shape.b, shape.slots, shape.dim)
		flat := Flatten(s)
		assert.Equal(t, shape.b*shape.slots, flat.Rows)
		assert.Equal(t, shape.dim, flat.Cols)

		back, err := Unflatten(flat, shape.b)
		require.NoError(t, err)
		assert.Equal(t, s.B, back.B)
		assert.Equal(t, s.Slots, back.Slots)
		assert.Equal(t, s.Dim, back.Dim)
		assert.Equal(t, s.Data, back.Data)
	}
}

func TestUnflattenRejectsUnevenRows(t *testing.T) {
	m := MustNewMatrix(7, 2)
	_, err := Unflatten(m, 3)
	assert.Error(t, err)
}

func TestSplitSetsRejectsBadWidths(t *testing.T) {
	s := MustNewSet(2, 5, 3)
	_, err := SplitSets(s, 1, 2)
	assert.Error(t, err)
	_, err = SplitSets(s, 1, -1, 5)
	assert.Error(t, err)
}

func TestConcatSetsRejectsShapeMismatch(t *testing.T) {
	a := MustNewSet(2, 1, 3)
	b := MustNewSet(3, 1, 3)
	_, err := ConcatSets(a, b)
	assert.Error(t, err)

	c := MustNewSet(2, 1, 4)
	_, err = ConcatSets(a, c)
	assert.Error(t, err)
}

func TestEntryViewSharesBacking(t *testing.T) {
	s := MustNewSet(2, 2, 2)
	s.Entry(1).SetAt(0, 1, 42)
	assert.Equal(t, 42.0, s.Row(1, 0)[1])
}

func TestWithConstColsAndTrimCols(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	s := randomSet(t, rng, 2, 3, 4)

	wide, err := s.WithConstCols(2, -1)
	require.NoError(t, err)
	assert.Equal(t, 6, wide.Dim)
	for b := 0; b < wide.B; b++ {
		for p := 0; p < wide.Slots; p++ {
			row := wide.Row(b, p)
			assert.Equal(t, s.Row(b, p), row[:4])
			assert.Equal(t, []float64{-1, -1}, row[4:])
		}
	}

	trimmed, err := wide.TrimCols(4)
	require.NoError(t, err)
	assert.Equal(t, s.Data, trimmed.Data)
}

func TestBoolMask(t *testing.T) {
	m := MustNewBoolMask(2, 3)
	m.Set(0, 0, true)
	m.Set(0, 2, true)
	m.Set(1, 1, true)
	assert.Equal(t, []int{2, 1}, m.TrueCounts())
	assert.True(t, m.At(0, 2))
	assert.False(t, m.At(1, 0))

	full, err := FullMask(2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, full.TrueCounts())

	joint, err := ConcatMasks(full, m)
	require.NoError(t, err)
	assert.Equal(t, 5, joint.Slots)
	assert.Equal(t, []bool{true, true, true, false, true}, joint.Row(0))
}
