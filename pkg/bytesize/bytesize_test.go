package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Size
	}{
		{"1024", 1024},
		{"10KB", 10 * KB},
		{"10kb", 10 * KB},
		{"10 KiB", 10 * KB},
		{"5MB", 5 * MB},
		{"1.5GB", Size(1.5 * float64(GB))},
		{"2t", 2 * TB},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			size, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, size)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "10XB", "-5MB"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		size     Size
		expected string
	}{
		{512, "512B"},
		{10 * KB, "10KB"},
		{5 * MB, "5MB"},
		{Size(1.5 * float64(GB)), "1.5GB"},
		{2 * TB, "2TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Format(tt.size))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, size := range []Size{0, 512, 10 * KB, 5 * MB, 3 * GB} {
		parsed, err := Parse(Format(size))
		require.NoError(t, err)
		assert.Equal(t, size, parsed)
	}
}
