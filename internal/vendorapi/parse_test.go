package vendorapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFloat(t *testing.T) {
	cases := []struct {
		in   any
		want *float64
	}{
		{"1.5", ptr(1.5)},
		{"-0.25", ptr(-0.25)},
		{float64(3), ptr(3.0)},
		{"None", nil},
		{"-", nil},
		{"", nil},
		{nil, nil},
		{"abc", nil},
		{[]any{}, nil},
	}
	for _, tc := range cases {
		got := safeFloat(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "in=%v", tc.in)
		} else {
			require.NotNil(t, got, "in=%v", tc.in)
			assert.Equal(t, *tc.want, *got)
		}
	}
}

func TestSafeIntTruncates(t *testing.T) {
	got := safeInt("3000000000000.9")
	require.NotNil(t, got)
	assert.Equal(t, int64(3000000000000), *got)

	assert.Nil(t, safeInt("None"))
	assert.Nil(t, safeInt(nil))
}

func TestSafeDate(t *testing.T) {
	got := safeDate("2024-01-02")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, safeDate("null"))
	assert.Nil(t, safeDate("None"))
	assert.Nil(t, safeDate("01/02/2024"))
}

func TestSafeNewsTime(t *testing.T) {
	got := safeNewsTime("20250710T132000")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 7, 10, 13, 20, 0, 0, time.UTC), *got)

	assert.Nil(t, safeNewsTime("2025-07-10"))
}

func ptr[T any](v T) *T { return &v }
