// Package bigmath implements the arbitrary-precision scalar variants of
// spec.md §3.3 (BigInt/BigFloat) on top of math/big, using bigfft for
// large-operand multiplication, the way the teacher's internal/bigmath
// package routes its own arbitrary-precision multiplication through the same
// accelerator above a bit-length threshold.
package bigmath

import (
	"math/big"

	"github.com/remyoudompheng/bigfft"
)

// fftThreshold is the operand bit-length above which multiplication is routed
// through bigfft instead of math/big's native Mul, mirroring the teacher's
// threshold-based dispatch in internal/bigmath/bigint.go.
const fftThreshold = 1 << 14

// Int wraps math/big.Int with the multiplication fast path above.
type Int struct {
	v *big.Int
}

func NewInt(x int64) *Int { return &Int{v: big.NewInt(x)} }

func NewIntFromString(s string, base int) (*Int, bool) {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	return &Int{v: v}, true
}

func (a *Int) Add(b *Int) *Int { return &Int{v: new(big.Int).Add(a.v, b.v)} }
func (a *Int) Sub(b *Int) *Int { return &Int{v: new(big.Int).Sub(a.v, b.v)} }

func (a *Int) Mul(b *Int) *Int {
	if a.v.BitLen() > fftThreshold && b.v.BitLen() > fftThreshold {
		return &Int{v: bigfft.Mul(a.v, b.v)}
	}
	return &Int{v: new(big.Int).Mul(a.v, b.v)}
}

func (a *Int) Div(b *Int) *Int { return &Int{v: new(big.Int).Quo(a.v, b.v)} }
func (a *Int) Mod(b *Int) *Int { return &Int{v: new(big.Int).Mod(a.v, b.v)} }
func (a *Int) Neg() *Int       { return &Int{v: new(big.Int).Neg(a.v)} }
func (a *Int) Cmp(b *Int) int  { return a.v.Cmp(b.v) }
func (a *Int) String() string  { return a.v.String() }
func (a *Int) Int64() int64    { return a.v.Int64() }
func (a *Int) Raw() *big.Int   { return a.v }

// Float wraps math/big.Float. Precision and rounding mode are process-wide
// settings (internal/config) per spec.md §5's three permitted mutable
// globals, not per-value state.
type Float struct {
	v *big.Float
}

func NewFloat(x float64, precision uint) *Float {
	f := new(big.Float).SetPrec(precision)
	f.SetFloat64(x)
	return &Float{v: f}
}

func NewFloatFromString(s string, precision uint) (*Float, bool) {
	f := new(big.Float).SetPrec(precision)
	_, ok := f.SetString(s)
	if !ok {
		return nil, false
	}
	return &Float{v: f}, true
}

func (a *Float) Add(b *Float) *Float { return &Float{v: new(big.Float).Add(a.v, b.v)} }
func (a *Float) Sub(b *Float) *Float { return &Float{v: new(big.Float).Sub(a.v, b.v)} }
func (a *Float) Mul(b *Float) *Float { return &Float{v: new(big.Float).Mul(a.v, b.v)} }
func (a *Float) Div(b *Float) *Float { return &Float{v: new(big.Float).Quo(a.v, b.v)} }
func (a *Float) Neg() *Float         { return &Float{v: new(big.Float).Neg(a.v)} }
func (a *Float) Cmp(b *Float) int    { return a.v.Cmp(b.v) }
func (a *Float) String() string      { return a.v.Text('g', int(a.v.Prec()/3)) }
func (a *Float) Float64() float64    { f, _ := a.v.Float64(); return f }
func (a *Float) Raw() *big.Float     { return a.v }

// DefaultPrecision is the starting BigFloat precision (bits), matching the
// teacher's default and spec.md's "configurable, global, process-wide"
// description of precision (§5).
const DefaultPrecision = 256
