// Package tensor provides the dense numeric types the prediction pipeline is
// built on: 2D matrices, batched padded sets, and boolean padding masks.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense row-major matrix of float64 values. The flat backing
// slice lets gonum operate on it without copying and lets a batched Set
// reinterpret the same memory as [batch*slots, dim].
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix creates a zeroed matrix. Zero rows are allowed (an empty support
// branch flattens to a 0-row matrix); columns must be positive.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows < 0 {
		return nil, fmt.Errorf("tensor: rows must be non-negative, got %d", rows)
	}
	if cols <= 0 {
		return nil, fmt.Errorf("tensor: cols must be positive, got %d", cols)
	}
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}, nil
}

// MustNewMatrix is NewMatrix that panics on error. Intended for main() and
// test setup only.
func MustNewMatrix(rows, cols int) *Matrix {
	m, err := NewMatrix(rows, cols)
	if err != nil {
		panic(err)
	}
	return m
}

// Row returns the i-th row as a slice view into the backing data.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

// SetAt sets the element at (i, j).
func (m *Matrix) SetAt(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Clone returns a deep copy of the matrix.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// SliceCols returns a copy of columns [from, to).
func (m *Matrix) SliceCols(from, to int) (*Matrix, error) {
	if from < 0 || to > m.Cols || from >= to {
		return nil, fmt.Errorf("tensor: invalid column range [%d, %d) for %d columns", from, to, m.Cols)
	}
	out, err := NewMatrix(m.Rows, to-from)
	if err != nil {
		return nil, err
	}
	for i := 0; i < m.Rows; i++ {
		copy(out.Row(i), m.Row(i)[from:to])
	}
	return out, nil
}

// dense wraps the matrix as a gonum Dense without copying. Only valid for
// matrices with at least one row.
func (m *Matrix) dense() *mat.Dense {
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// MatMul computes a×b via gonum.
func MatMul(a, b *Matrix) (*Matrix, error) {
	if a.Cols != b.Rows {
		return nil, fmt.Errorf("tensor: dimension mismatch in MatMul: %dx%d × %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	result, err := NewMatrix(a.Rows, b.Cols)
	if err != nil {
		return nil, err
	}
	if a.Rows == 0 {
		return result, nil
	}
	result.dense().Mul(a.dense(), b.dense())
	return result, nil
}

// Transpose returns a new transposed matrix.
func Transpose(m *Matrix) *Matrix {
	out := &Matrix{Rows: m.Cols, Cols: m.Rows, Data: make([]float64, len(m.Data))}
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Data[j*out.Cols+i] = m.Data[i*m.Cols+j]
		}
	}
	return out
}

// Add returns a+b element-wise.
func Add(a, b *Matrix) (*Matrix, error) {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return nil, fmt.Errorf("tensor: dimension mismatch in Add: %dx%d vs %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	out, err := NewMatrix(a.Rows, a.Cols)
	if err != nil {
		return nil, err
	}
	floats.AddTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Scale returns m scaled by a constant.
func Scale(m *Matrix, c float64) *Matrix {
	out := m.Clone()
	floats.Scale(c, out.Data)
	return out
}

// Apply returns a new matrix with fn applied element-wise.
func Apply(m *Matrix, fn func(float64) float64) *Matrix {
	out := &Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	for i, v := range m.Data {
		out.Data[i] = fn(v)
	}
	return out
}

// RowSoftmax applies a numerically stable softmax to every row.
func RowSoftmax(m *Matrix) *Matrix {
	out := &Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	for i := 0; i < m.Rows; i++ {
		row := m.Row(i)
		max := floats.Max(row)
		dst := out.Row(i)
		sum := 0.0
		for j, v := range row {
			dst[j] = math.Exp(v - max)
			sum += dst[j]
		}
		floats.Scale(1.0/sum, dst)
	}
	return out
}

// RowNorm returns the Euclidean norm of row i.
func (m *Matrix) RowNorm(i int) float64 {
	row := m.Row(i)
	return math.Sqrt(floats.Dot(row, row))
}

// Equal reports whether a and b have identical shape and element-wise agree
// within epsilon.
func Equal(a, b *Matrix, epsilon float64) bool {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return false
	}
	for i := range a.Data {
		if math.Abs(a.Data[i]-b.Data[i]) > epsilon {
			return false
		}
	}
	return true
}
