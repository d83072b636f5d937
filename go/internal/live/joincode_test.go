package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJoinCode_SixDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewJoinCode()
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
	}
}

func TestFormatJoinCode(t *testing.T) {
	assert.Equal(t, "482 913", FormatJoinCode("482913"))
	// Anything off-length passes through untouched.
	assert.Equal(t, "1234", FormatJoinCode("1234"))
}

func TestNormalizeJoinCode(t *testing.T) {
	assert.Equal(t, "482913", NormalizeJoinCode("482 913"))
	assert.Equal(t, "482913", NormalizeJoinCode("482913"))
	assert.Equal(t, "482913", NormalizeJoinCode(" 482-913 "))
}
