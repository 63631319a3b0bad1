// Package core provides the tracker's data model and amount handling.
//
// Amounts follow the numeric semantics of the browser page the tracker grew out
// of: free-form text parses permissively, malformed text becomes NaN instead of
// an error, and non-finite values travel as JSON null.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value as shown to and typed by the user.
type Amount float64

// NaN is the amount produced by malformed input.
var NaN = Amount(math.NaN())

// IsFinite reports whether a is neither NaN nor infinite.
func (a Amount) IsFinite() bool {
	f := float64(a)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsNaN reports whether a is NaN.
func (a Amount) IsNaN() bool {
	return math.IsNaN(float64(a))
}

// Decimal converts a finite amount to a decimal. Non-finite amounts yield zero.
func (a Amount) Decimal() decimal.Decimal {
	if !a.IsFinite() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(float64(a))
}

// String renders the amount with two decimals.
func (a Amount) String() string {
	return FormatAmount(a)
}

// MarshalJSON encodes non-finite values as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.IsFinite() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(a))
}

// UnmarshalJSON decodes null as zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// ParseNumber converts user or display text to an amount.
//
// Surrounding whitespace is ignored and empty text is zero. Decimal and
// exponent notation and Infinity are accepted.
// Anything else is NaN; there is no error return.
//
// Examples:
//
//	ParseNumber("12.5")  -> 12.5
//	ParseNumber("  ")    -> 0
//	ParseNumber("1e3")   -> 1000
//	ParseNumber("12abc") -> NaN
func ParseNumber(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	switch s {
	case "Infinity", "+Infinity":
		return Amount(math.Inf(1))
	case "-Infinity":
		return Amount(math.Inf(-1))
	}

	// strconv accepts spellings the page never did.
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return NaN
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return Amount(f)
		}
		return NaN
	}
	return Amount(f)
}

// FormatAmount renders a with exactly two decimals the way the page's
// toFixed(2) did: the exact binary value is rounded half away from zero, so
// 2.675 (stored as 2.67499...) renders "2.67". A negative value that rounds to
// zero keeps its sign. Magnitudes of 1e21 and above use exponent notation.
// NaN renders as "NaN" and infinities as "Infinity" / "-Infinity".
func FormatAmount(a Amount) string {
	f := float64(a)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.Abs(f) >= 1e21:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := exactDecimal(f).StringFixed(2)
	if f < 0 && !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	return s
}

// exactDecimal expands f without the shortest-representation rounding
// decimal.NewFromFloat applies.
func exactDecimal(f float64) decimal.Decimal {
	frac, exp := math.Frexp(f)
	mant := big.NewInt(int64(math.Ldexp(frac, 53)))
	exp -= 53
	if exp >= 0 {
		return decimal.NewFromBigInt(mant.Lsh(mant, uint(exp)), 0)
	}
	// m / 2^k == m * 5^k / 10^k
	five := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(-exp)), nil)
	return decimal.NewFromBigInt(mant.Mul(mant, five), int32(exp))
}
