package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIndices(t *testing.T) {
	tests := []struct {
		name   string
		s      Slice
		length int
		want   []int
	}{
		{"span", Span(2, 5), 10, []int{2, 3, 4}},
		{"everything", Everything(), 4, []int{0, 1, 2, 3}},
		{"from negative", From(-3), 10, []int{7, 8, 9}},
		{"until negative", Until(-8), 10, []int{0, 1}},
		{"stride", Span(1, 9).Every(3), 10, []int{1, 4, 7}},
		{"reverse", Everything().Every(-1), 4, []int{3, 2, 1, 0}},
		{"reverse stride", Span(8, 1).Every(-3), 10, []int{8, 5, 2}},
		{"stop past end", Span(8, 100), 10, []int{8, 9}},
		{"start before beginning", Span(-100, 2), 10, []int{0, 1}},
		{"empty", Span(5, 5), 10, nil},
		{"backwards without negative step", Span(5, 2), 10, nil},
		{"empty source", Everything(), 0, nil},
		{"unknown length", Everything(), -1, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.s.Indices(tc.length)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSliceZeroStep(t *testing.T) {
	_, err := Span(0, 3).Every(0).Indices(10)
	assert.Equal(t, ErrZeroStep, err)
}

func TestParseSlice(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"2:5", []int{2, 3, 4}},
		{"::4", []int{0, 4, 8}},
		{"-2:", []int{8, 9}},
		{":3", []int{0, 1, 2}},
		{"7", []int{7}},
		{"-1", []int{9}},
		{"-3", []int{7}},
		{"::-5", []int{9, 4}},
	}
	for _, tc := range tests {
		s, err := ParseSlice(tc.in)
		require.NoError(t, err, tc.in)
		got, err := s.Indices(10)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "a:b", "1:2:3:4", "1:x"} {
		_, err := ParseSlice(bad)
		assert.Error(t, err, bad)
	}
}

func TestSliceString(t *testing.T) {
	assert.Equal(t, "2:5:1", Span(2, 5).String())
	assert.Equal(t, ":-1:2", Until(-1).Every(2).String())
	assert.Equal(t, "::1", Everything().String())
}
