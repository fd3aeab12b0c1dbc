package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeValid(t *testing.T) {
	require.True(t, Keyboard.Valid())
	require.True(t, Mouse.Valid())
	require.False(t, Type("touch").Valid())
	require.False(t, Type("").Valid())
}

func TestCountsScore(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   int64
	}{
		{name: "empty", counts: Counts{}, want: 0},
		{name: "keyboard only", counts: Counts{Keyboard: 3}, want: 3},
		{name: "mouse weighs five", counts: Counts{Mouse: 2}, want: 10},
		{name: "mixed", counts: Counts{Keyboard: 3, Mouse: 1}, want: 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.counts.Score())
		})
	}
}
