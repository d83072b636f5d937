package live

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const joinCodeDigits = 6

// NewJoinCode returns a fresh 6-digit join code. Uniqueness among live
// sessions is enforced by the coordinator's code index, not here.
func NewJoinCode() string {
	max := big.NewInt(1)
	for i := 0; i < joinCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(fmt.Sprintf("join code entropy: %v", err))
	}
	return fmt.Sprintf("%0*d", joinCodeDigits, n)
}

// FormatJoinCode renders a code for humans, grouped in chunks of three:
// "482913" -> "482 913".
func FormatJoinCode(code string) string {
	if len(code) != joinCodeDigits {
		return code
	}
	return code[:3] + " " + code[3:]
}

// NormalizeJoinCode strips the grouping people type back in, so "482 913"
// and "482913" resolve to the same session.
func NormalizeJoinCode(code string) string {
	out := make([]byte, 0, joinCodeDigits)
	for i := 0; i < len(code); i++ {
		if code[i] >= '0' && code[i] <= '9' {
			out = append(out, code[i])
		}
	}
	return string(out)
}
