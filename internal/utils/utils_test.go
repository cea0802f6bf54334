package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(5)
		require.NoError(t, err)
		assert.Len(t, code, 5)
		assert.Regexp(t, `^\d{5}$`, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)

	_, err := GenerateNumericCode(0)
	assert.Error(t, err)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+*******1234", MaskPhone("+96550001234"))
	assert.Equal(t, "123", MaskPhone("123"))
}

func TestTruncateTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.FixedZone("AST", 3*3600))
	got := TruncateTime(ts)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123000000, got.Nanosecond())
	assert.True(t, got.Equal(ts.Truncate(time.Millisecond)))
}
