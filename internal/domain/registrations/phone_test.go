package registrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"2", "(2"},
		{"22", "(22"},
		{"229", "(22) 9"},
		{"229999", "(22) 9999"},
		{"2299998", "(22) 9999-8"},
		{"2233334444", "(22) 3333-4444"},
		{"22999998888", "(22) 99999-8888"},
		{"(22) 99999-8888", "(22) 99999-8888"},
		{"+55 22 99999 8888 1", "+55 22 99999 8888 1"},
		{"abc", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatPhone(tt.in), "input %q", tt.in)
	}
}

func TestValidPhone(t *testing.T) {
	require.True(t, ValidPhone("(22) 99999-8888"))
	require.True(t, ValidPhone("(22) 3333-4444"))
	require.True(t, ValidPhone("(22)3333-4444"))
	require.False(t, ValidPhone("(22) 999-8888"))
	require.False(t, ValidPhone("22 99999-8888"))
	require.False(t, ValidPhone("(22) 9999"))
}

func TestFormatPhoneThenValidate(t *testing.T) {
	require.True(t, ValidPhone(FormatPhone("22 3333 4444")))
	require.True(t, ValidPhone(FormatPhone("22-99999-8888")))
	require.False(t, ValidPhone(FormatPhone("229999")))
	require.False(t, ValidPhone(FormatPhone("229999988881")))
}
