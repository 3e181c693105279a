package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Vector arithmetic
		a, b := Vector{1, 2, 3}, Vector{4, 5, 6}
		assert.Equal(t, Vector{5, 7, 9}, a.Add(b))
		assert.Equal(t, Vector{-3, -3, -3}, a.Sub(b))
		assert.Equal(t, Vector{2, 4, 6}, a.Scale(2))
		assert.Equal(t, 32., a.Dot(b))
		assert.InDelta(t, 1., a.Normalized().Mag(), 1.e-14)
		assert.Equal(t, Vector{}, Vector{}.Normalized())
	}
	{ // Symmetric tensor indexing is symmetric
		s := SymmTensor{1, 2, 3, 4, 5, 6}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.Equal(t, s.At(i, j), s.At(j, i))
			}
		}
		assert.Equal(t, 11., s.Trace())
		full := s.Full()
		assert.Equal(t, Tensor{1, 2, 3, 2, 4, 5, 3, 5, 6}, full)
		assert.Equal(t, NewSymmTensorDiag(2, 8, 12), NewSymmTensorDiag(1, 4, 6).Scale(2))
	}
	{ // Lower triangular T·Tᵗ
		var L Tensor
		L.Set(0, 0, 1)
		L.Set(1, 0, 2)
		L.Set(1, 1, 3)
		L.Set(2, 0, 4)
		L.Set(2, 1, 5)
		L.Set(2, 2, 6)
		R := L.OuterSelf()
		assert.Equal(t, 1., R[XX])
		assert.Equal(t, 2., R[XY])
		assert.Equal(t, 4., R[XZ])
		assert.Equal(t, 13., R[YY])
		assert.Equal(t, 23., R[YZ])
		assert.Equal(t, 77., R[ZZ])
		assert.Equal(t, Vector{1, 5, 21}, L.MulVec(Vector{1, 1, 2}))
	}
	assert.Equal(t, "v", V.String())
}
