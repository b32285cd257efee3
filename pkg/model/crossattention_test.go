package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/tensor"
)

func crossAttentionConfig() config.CrossAttentionConfig {
	return config.CrossAttentionConfig{
		ActivityDim: 2,
		Heads:       2,
		FFDim:       16,
		Layers:      2,
		Dropout:     0,
	}
}

func TestCrossAttentionRestoresShapes(t *testing.T) {
	ca, err := NewCrossAttention(crossAttentionConfig(), 6, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	query := randomTestSet(rng, 3, 1, 6)
	actives := randomTestSet(rng, 3, 4, 6)
	inactives := randomTestSet(rng, 3, 2, 6)
	aMask, err := tensor.FullMask(3, 4)
	require.NoError(t, err)
	iMask, err := tensor.FullMask(3, 2)
	require.NoError(t, err)

	q, a, i, err := ca.Forward(query, actives, inactives, aMask, iMask, false)
	require.NoError(t, err)

	// Activity-encoding columns must be stripped again.
	assert.Equal(t, [3]int{3, 1, 6}, [3]int{q.B, q.Slots, q.Dim})
	assert.Equal(t, [3]int{3, 4, 6}, [3]int{a.B, a.Slots, a.Dim})
	assert.Equal(t, [3]int{3, 2, 6}, [3]int{i.B, i.Slots, i.Dim})
}

// The central correctness property of the key-padding mask: the content of a
// padded slot must not affect the output at the query or at any real support
// position.
func TestCrossAttentionPaddingInvariance(t *testing.T) {
	ca, err := NewCrossAttention(crossAttentionConfig(), 6, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(4))
	query := randomTestSet(rng, 2, 1, 6)
	actives := randomTestSet(rng, 2, 2, 6)
	inactives := randomTestSet(rng, 2, 2, 6)

	aMask, err := tensor.FullMask(2, 2)
	require.NoError(t, err)
	iMask := tensor.MustNewBoolMask(2, 2)
	iMask.Set(0, 0, true) // slot 1 of entry 0 is padding
	iMask.Set(1, 0, true)
	iMask.Set(1, 1, true)

	baseQ, baseA, baseI, err := ca.Forward(query, actives, inactives, aMask, iMask, false)
	require.NoError(t, err)

	perturbed := inactives.Clone()
	for k, v := range perturbed.Row(0, 1) {
		perturbed.Row(0, 1)[k] = v*17 + 3
	}

	q, a, i, err := ca.Forward(query, actives, perturbed, aMask, iMask, false)
	require.NoError(t, err)

	assert.InDeltaSlice(t, baseQ.Row(0, 0), q.Row(0, 0), 1e-12, "query changed")
	for p := 0; p < 2; p++ {
		assert.InDeltaSlice(t, baseA.Row(0, p), a.Row(0, p), 1e-12, "active slot %d changed", p)
	}
	assert.InDeltaSlice(t, baseI.Row(0, 0), i.Row(0, 0), 1e-12, "real inactive slot changed")

	// Entry 1 shares no positions with entry 0 and must be untouched.
	assert.InDeltaSlice(t, baseQ.Row(1, 0), q.Row(1, 0), 1e-12)
	for p := 0; p < 2; p++ {
		assert.InDeltaSlice(t, baseI.Row(1, p), i.Row(1, p), 1e-12)
	}
}

func TestCrossAttentionEmptyInactiveBranch(t *testing.T) {
	ca, err := NewCrossAttention(crossAttentionConfig(), 6, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(6))
	query := randomTestSet(rng, 2, 1, 6)
	actives := randomTestSet(rng, 2, 3, 6)
	inactives := tensor.MustNewSet(2, 0, 6)
	aMask, err := tensor.FullMask(2, 3)
	require.NoError(t, err)
	iMask := tensor.MustNewBoolMask(2, 0)

	_, _, i, err := ca.Forward(query, actives, inactives, aMask, iMask, false)
	require.NoError(t, err)
	assert.Equal(t, 0, i.Slots)
}

func TestCrossAttentionRejectsBadWidths(t *testing.T) {
	ca, err := NewCrossAttention(crossAttentionConfig(), 6, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(8))
	query := randomTestSet(rng, 2, 1, 4)
	actives := randomTestSet(rng, 2, 2, 4)
	inactives := randomTestSet(rng, 2, 2, 4)
	aMask, _ := tensor.FullMask(2, 2)
	iMask, _ := tensor.FullMask(2, 2)

	_, _, _, err = ca.Forward(query, actives, inactives, aMask, iMask, false)
	assert.Error(t, err)
}

func TestNewCrossAttentionRejectsIndivisibleWidth(t *testing.T) {
	cfg := crossAttentionConfig()
	cfg.Heads = 3 // (6 + 2) % 3 != 0
	_, err := NewCrossAttention(cfg, 6, rand.New(rand.NewSource(9)))
	assert.Error(t, err)
}
