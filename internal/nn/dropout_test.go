package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molpredict/fewshot/internal/tensor"
)

func onesMatrix(rows, cols int) *tensor.Matrix {
	m := tensor.MustNewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = 1
	}
	return m
}

func TestDropoutEvalModeIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d, err := NewDropout(0.5, rng)
	require.NoError(t, err)

	x := onesMatrix(4, 4)
	out := d.Forward(x, false)
	assert.Same(t, x, out)
}

func TestDropoutTrainingZeroesAndRescales(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d, err := NewDropout(0.5, rng)
	require.NoError(t, err)

	x := onesMatrix(100, 100)
	out := d.Forward(x, true)

	zeroed := 0
	for _, v := range out.Data {
		switch v {
		case 0:
			zeroed++
		case 2:
			// survivor scaled by 1/(1-rate)
		default:
			t.Fatalf("unexpected dropout output value %v", v)
		}
	}
	frac := float64(zeroed) / float64(len(out.Data))
	assert.InDelta(t, 0.5, frac, 0.05)
	// input untouched
	assert.Equal(t, 1.0, x.Data[0])
}

func TestDropoutRateValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	_, err := NewDropout(1.0, rng)
	assert.Error(t, err)
	_, err = NewDropout(-0.1, rng)
	assert.Error(t, err)
	_, err = NewAlphaDropout(1.0, rng)
	assert.Error(t, err)
}

func TestAlphaDropoutEvalModeIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	d, err := NewAlphaDropout(0.3, rng)
	require.NoError(t, err)

	x := onesMatrix(3, 3)
	assert.Same(t, x, d.Forward(x, false))
}

func TestAlphaDropoutPreservesMoments(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	d, err := NewAlphaDropout(0.2, rng)
	require.NoError(t, err)

	// Standard-normal input: alpha dropout should keep mean ≈ 0 and
	// variance ≈ 1 rather than shrinking them like ordinary dropout would.
	x := tensor.MustNewMatrix(200, 200)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()
	}
	out := d.Forward(x, true)

	n := float64(len(out.Data))
	mean := 0.0
	for _, v := range out.Data {
		mean += v
	}
	mean /= n
	variance := 0.0
	for _, v := range out.Data {
		variance += (v - mean) * (v - mean)
	}
	variance /= n

	assert.InDelta(t, 0.0, mean, 0.05)
	assert.InDelta(t, 1.0, variance, 0.1)
}
