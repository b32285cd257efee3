package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molpredict/fewshot/internal/tensor"
)

func TestParseActivation(t *testing.T) {
	cases := map[string]Activation{
		"relu":    ReLU,
		"selu":    SELU,
		"sigmoid": Sigmoid,
	}
	for name, want := range cases {
		got, err := ParseActivation(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, err := ParseActivation("tanh")
	assert.Error(t, err)
	_, err = ParseActivation("")
	assert.Error(t, err)
}

func TestActivationValues(t *testing.T) {
	assert.Equal(t, 0.0, relu(-2))
	assert.Equal(t, 3.0, relu(3))

	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0/(1+math.Exp(1)), sigmoid(-1), 1e-12)

	assert.InDelta(t, seluLambda*2, selu(2), 1e-12)
	assert.InDelta(t, seluLambda*seluAlpha*(math.Exp(-1)-1), selu(-1), 1e-12)
}

func TestActivationApply(t *testing.T) {
	m := tensor.MustNewMatrix(1, 3)
	copy(m.Data, []float64{-1, 0, 2})
	out := ReLU.Apply(m)
	assert.Equal(t, []float64{0, 0, 2}, out.Data)
	// input untouched
	assert.Equal(t, []float64{-1, 0, 2}, m.Data)
}

func TestActivationMatchedStrategies(t *testing.T) {
	assert.Equal(t, InitHe, ReLU.Init())
	assert.Equal(t, InitLeCun, SELU.Init())
	assert.Equal(t, InitGlorot, Sigmoid.Init())

	rng := rand.New(rand.NewSource(1))
	reg, err := NewRegularizer(SELU, 0.5, rng)
	require.NoError(t, err)
	_, ok := reg.(*AlphaDropout)
	assert.True(t, ok, "self-normalizing activation must pair with alpha dropout")

	reg, err = NewRegularizer(ReLU, 0.5, rng)
	require.NoError(t, err)
	_, ok = reg.(*Dropout)
	assert.True(t, ok)
}

func TestInitWeightsUnknownStrategy(t *testing.T) {
	w := tensor.MustNewMatrix(2, 2)
	err := initWeights(w, InitKind(99), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestGlorotBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := tensor.MustNewMatrix(10, 6)
	require.NoError(t, initWeights(w, InitGlorot, rng))
	limit := math.Sqrt(6.0 / 16.0)
	for _, v := range w.Data {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}
}
