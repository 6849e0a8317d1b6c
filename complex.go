package goloadflow

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivisionByZero is returned by Complex.Div when the divisor is exactly zero.
var ErrDivisionByZero = errors.New("complex: division by zero")

// Complex is a rectangular-form complex number. Values are immutable,
// every operation returns a new Complex.
type Complex struct {
	Re float64
	Im float64
}

// FromPolar builds magnitude·(cos(angle) + j·sin(angle)), angle in radians.
func FromPolar(magnitude, angle float64) Complex {
	return Complex{magnitude * math.Cos(angle), magnitude * math.Sin(angle)}
}

// FromComplex128 converts a built-in complex value.
func FromComplex128(c complex128) Complex {
	return Complex{real(c), imag(c)}
}

// Complex128 converts to the built-in complex type used by gonum storage.
func (c Complex) Complex128() complex128 {
	return complex(c.Re, c.Im)
}

func (c Complex) Add(o Complex) Complex {
	return Complex{c.Re + o.Re, c.Im + o.Im}
}

func (c Complex) Sub(o Complex) Complex {
	return Complex{c.Re - o.Re, c.Im - o.Im}
}

func (c Complex) Mul(o Complex) Complex {
	return Complex{c.Re*o.Re - c.Im*o.Im, c.Re*o.Im + c.Im*o.Re}
}

// Div returns c/o. The quotient is scaled by the larger part of o (Smith's
// method) so |o|² is never formed and tiny or huge divisors stay exact.
func (c Complex) Div(o Complex) (Complex, error) {
	if o.IsZero() {
		return Complex{}, ErrDivisionByZero
	}
	if math.Abs(o.Re) >= math.Abs(o.Im) {
		r := o.Im / o.Re
		d := o.Re + o.Im*r
		return Complex{(c.Re + c.Im*r) / d, (c.Im - c.Re*r) / d}, nil
	}
	r := o.Re / o.Im
	d := o.Im + o.Re*r
	return Complex{(c.Re*r + c.Im) / d, (c.Im*r - c.Re) / d}, nil
}

// Inv returns 1/c.
func (c Complex) Inv() (Complex, error) {
	return Complex{Re: 1}.Div(c)
}

func (c Complex) Conj() Complex {
	return Complex{c.Re, -c.Im}
}

// Neg returns -c.
func (c Complex) Neg() Complex {
	return Complex{-c.Re, -c.Im}
}

// Abs returns the Euclidean magnitude.
func (c Complex) Abs() float64 {
	return math.Hypot(c.Re, c.Im)
}

// Arg returns atan2(Im, Re) in radians, in (-π, π].
func (c Complex) Arg() float64 {
	a := math.Atan2(c.Im, c.Re)
	if a == -math.Pi {
		// negative zero imaginary part
		return math.Pi
	}
	return a
}

// IsZero reports whether both parts are exactly zero.
func (c Complex) IsZero() bool {
	return c.Re == 0 && c.Im == 0
}

func (c Complex) String() string {
	if c.Im < 0 {
		return fmt.Sprintf("%g-j%g", c.Re, -c.Im)
	}
	return fmt.Sprintf("%g+j%g", c.Re, c.Im)
}
