// Package units converts between human-entered decimal amounts and the
// 18-decimal integer base units used on chain. All arithmetic is exact
// big.Int; floating point never touches an on-chain value.
package units

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the fixed scale shared by the house token and native currency.
const Decimals = 18

var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ToBaseUnits parses a decimal string such as "12.5" into base units
// (12.5 * 10^18). Fractional digits beyond the scale are truncated toward
// zero. The empty string, a bare ".", and any non-digit content are rejected.
func ToBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" || s == "." {
		return nil, fmt.Errorf("empty amount")
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, fmt.Errorf("malformed amount %q", s)
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, fmt.Errorf("malformed amount %q", s)
	}

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	whole.Mul(whole, scale)

	if len(fracPart) > Decimals {
		fracPart = fracPart[:Decimals] // truncate toward zero
	}
	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("malformed amount %q", s)
		}
		pad := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals-len(fracPart))), nil)
		whole.Add(whole, frac.Mul(frac, pad))
	}

	if neg {
		whole.Neg(whole)
	}
	return whole, nil
}

// FromBaseUnits renders base units as a decimal string with trailing zeros
// trimmed, e.g. 1500000000000000000 -> "1.5".
func FromBaseUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	abs := new(big.Int).Abs(v)
	whole, frac := new(big.Int).QuoRem(abs, scale, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", Decimals-len(digits)) + digits
		digits = strings.TrimRight(digits, "0")
		out += "." + digits
	}
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
