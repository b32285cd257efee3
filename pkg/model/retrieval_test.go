package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/tensor"
)

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{Heads: 2, HeadDim: 3, Scaling: 0, Dropout: 0}
}

func randomTestSet(rng *rand.Rand, b, slots, dim int) *tensor.Set {
	s := tensor.MustNewSet(b, slots, dim)
	for i := range s.Data {
		s.Data[i] = rng.NormFloat64()
	}
	return s
}

func TestContextRetrievalShapes(t *testing.T) {
	cr, err := NewContextRetrieval(retrievalConfig(), 6, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	query := randomTestSet(rng, 3, 1, 6)
	actives := randomTestSet(rng, 3, 4, 6)
	inactives := randomTestSet(rng, 3, 2, 6)
	context := randomTestSet(rng, 1, 9, 6)

	q, a, i, err := cr.Forward(query, actives, inactives, context, false)
	require.NoError(t, err)

	assert.Equal(t, [3]int{3, 1, 6}, [3]int{q.B, q.Slots, q.Dim})
	assert.Equal(t, [3]int{3, 4, 6}, [3]int{a.B, a.Slots, a.Dim})
	assert.Equal(t, [3]int{3, 2, 6}, [3]int{i.B, i.Slots, i.Dim})
}

// With a zeroed output projection the retrieved correction is exactly zero,
// so the residual path must reproduce the inputs bit for bit. This pins the
// flatten/unflatten round trip: any offset error would shuffle rows between
// roles or batch entries.
func TestContextRetrievalResidualRoundTrip(t *testing.T) {
	cr, err := NewContextRetrieval(retrievalConfig(), 6, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	for k := range cr.Attention.OutputWeight.Weight.Data {
		cr.Attention.OutputWeight.Weight.Data[k] = 0
	}

	rng := rand.New(rand.NewSource(4))
	query := randomTestSet(rng, 2, 1, 6)
	actives := randomTestSet(rng, 2, 3, 6)
	inactives := randomTestSet(rng, 2, 2, 6)
	context := randomTestSet(rng, 1, 5, 6)

	q, a, i, err := cr.Forward(query, actives, inactives, context, false)
	require.NoError(t, err)

	assert.Equal(t, query.Data, q.Data)
	assert.Equal(t, actives.Data, a.Data)
	assert.Equal(t, inactives.Data, i.Data)
}

func TestContextRetrievalInputsAreNotMutated(t *testing.T) {
	cr, err := NewContextRetrieval(retrievalConfig(), 6, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(6))
	query := randomTestSet(rng, 2, 1, 6)
	actives := randomTestSet(rng, 2, 2, 6)
	inactives := randomTestSet(rng, 2, 2, 6)
	context := randomTestSet(rng, 1, 4, 6)

	queryBefore := query.Clone()
	_, _, _, err = cr.Forward(query, actives, inactives, context, false)
	require.NoError(t, err)
	assert.Equal(t, queryBefore.Data, query.Data)
}

func TestContextRetrievalEmptyInactiveBranch(t *testing.T) {
	cr, err := NewContextRetrieval(retrievalConfig(), 6, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(8))
	query := randomTestSet(rng, 2, 1, 6)
	actives := randomTestSet(rng, 2, 3, 6)
	inactives := tensor.MustNewSet(2, 0, 6)
	context := randomTestSet(rng, 1, 4, 6)

	_, _, i, err := cr.Forward(query, actives, inactives, context, false)
	require.NoError(t, err)
	assert.Equal(t, 0, i.Slots)
}

func TestContextRetrievalRejectsPerEntryContext(t *testing.T) {
	cr, err := NewContextRetrieval(retrievalConfig(), 6, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(10))
	query := randomTestSet(rng, 2, 1, 6)
	actives := randomTestSet(rng, 2, 2, 6)
	inactives := randomTestSet(rng, 2, 2, 6)
	context := randomTestSet(rng, 2, 4, 6)

	_, _, _, err = cr.Forward(query, actives, inactives, context, false)
	assert.Error(t, err)
}

func TestContextRetrievalRejectsWidthMismatch(t *testing.T) {
	cr, err := NewContextRetrieval(retrievalConfig(), 6, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(12))
	query := randomTestSet(rng, 2, 1, 4)
	actives := randomTestSet(rng, 2, 2, 4)
	inactives := randomTestSet(rng, 2, 2, 4)
	context := randomTestSet(rng, 1, 4, 4)

	_, _, _, err = cr.Forward(query, actives, inactives, context, false)
	assert.Error(t, err)
}
