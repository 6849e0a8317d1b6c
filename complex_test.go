package goloadflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplexArithmetic(t *testing.T) {
	a := Complex{3, 4}
	b := Complex{1, -2}

	assert.Equal(t, Complex{4, 2}, a.Add(b))
	assert.Equal(t, Complex{2, 6}, a.Sub(b))
	// (3+4j)(1-2j) = 3 - 6j + 4j + 8 = 11 - 2j
	assert.Equal(t, Complex{11, -2}, a.Mul(b))
	assert.Equal(t, Complex{3, -4}, a.Conj())
	assert.Equal(t, 5.0, a.Abs())

	// (3+4j)/(1-2j) = (3+4j)(1+2j)/5 = (-5+10j)/5
	q, err := a.Div(b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, q.Re, 1e-15)
	assert.InDelta(t, 2.0, q.Im, 1e-15)
}

func TestComplexDivideByZero(t *testing.T) {
	_, err := Complex{1, 1}.Div(Complex{})
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Complex{}.Inv()
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestComplexDivideExtremeMagnitudes(t *testing.T) {
	q, err := Complex{1, 0}.Inv()
	require.NoError(t, err)
	assert.Equal(t, Complex{1, 0}, q)

	// |o|² underflows to zero here
	q, err = Complex{1, 0}.Div(Complex{1e-170, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q.Re/1e170, 1e-12)
	assert.Equal(t, 0.0, q.Im)

	// (1+j)/(1e-200(1+j))
	q, err = Complex{1, 1}.Div(Complex{1e-200, 1e-200})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, q.Re/1e200, 1e-12)
	assert.InDelta(t, 0.0, q.Im, 1e-12)

	// |o|² overflows to +Inf here
	q, err = Complex{2, 0}.Div(Complex{0, 1e200})
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.Re)
	assert.InDelta(t, -2.0, q.Im*1e200, 1e-12)
}

func TestComplexPolar(t *testing.T) {
	c := FromPolar(2, math.Pi/3)
	assert.InDelta(t, 1.0, c.Re, 1e-12)
	assert.InDelta(t, math.Sqrt(3), c.Im, 1e-12)
	assert.InDelta(t, 2.0, c.Abs(), 1e-12)
	assert.InDelta(t, math.Pi/3, c.Arg(), 1e-12)
}

func TestComplexArgRange(t *testing.T) {
	assert.Equal(t, math.Pi, Complex{-1, 0}.Arg())
	assert.Equal(t, math.Pi, Complex{-1, math.Copysign(0, -1)}.Arg())
	assert.InDelta(t, -math.Pi/2, Complex{0, -1}.Arg(), 1e-15)
}

func TestComplexValueSemantics(t *testing.T) {
	a := Complex{1, 2}
	_ = a.Add(Complex{5, 5})
	_ = a.Mul(Complex{2, 0})
	assert.Equal(t, Complex{1, 2}, a)
	assert.Equal(t, complex(1, 2), a.Complex128())
	assert.Equal(t, a, FromComplex128(a.Complex128()))
}
