package registrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestFormatClock(t *testing.T) {
	require.Equal(t, "", FormatClock(nil))
	require.Equal(t, "00:00", FormatClock(intPtr(0)))
	require.Equal(t, "01:20", FormatClock(intPtr(80)))
	require.Equal(t, "59:59", FormatClock(intPtr(3599)))
	require.Equal(t, "01:00:00", FormatClock(intPtr(3600)))
	require.Equal(t, "01:02:05", FormatClock(intPtr(3725)))
}

func TestSplitClock(t *testing.T) {
	require.Equal(t, ClockParts{}, SplitClock(nil))
	require.Equal(t, ClockParts{Hours: "1", Minutes: "02", Seconds: "05"}, SplitClock(intPtr(3725)))
	require.Equal(t, ClockParts{Hours: "0", Minutes: "45", Seconds: "30"}, SplitClock(intPtr(2730)))
}

func TestSecondsFromParts(t *testing.T) {
	tests := []struct {
		name  string
		parts ClockParts
		want  *int
	}{
		{"all blank", ClockParts{}, nil},
		{"minutes and seconds", ClockParts{Minutes: "45", Seconds: "30"}, intPtr(2730)},
		{"with hours", ClockParts{Hours: "1", Minutes: "02", Seconds: "05"}, intPtr(3725)},
		{"minutes clamped", ClockParts{Minutes: "75"}, intPtr(59 * 60)},
		{"seconds clamped", ClockParts{Minutes: "1", Seconds: "99"}, intPtr(60 + 59)},
		{"negative clamped", ClockParts{Minutes: "-5", Seconds: "10"}, intPtr(10)},
		{"non numeric", ClockParts{Minutes: "ab"}, nil},
		{"negative hours", ClockParts{Hours: "-1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SecondsFromParts(tt.parts))
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"45:30", intPtr(2730)},
		{"01:02:05", intPtr(3725)},
		{" 00:59 ", intPtr(59)},
		{"", nil},
		{"45", nil},
		{"45:61", nil},
		{"75:00", nil},
		{"1:2:3:4", nil},
		{"aa:bb", nil},
		{"-1:00", nil},
		{":30", nil},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseClock(tt.in), "input %q", tt.in)
	}
}

func TestClockRoundTrip(t *testing.T) {
	for _, s := range []int{0, 59, 80, 3599, 3600, 3725, 7322} {
		require.Equal(t, intPtr(s), ParseClock(FormatClock(intPtr(s))))
		require.Equal(t, intPtr(s), SecondsFromParts(SplitClock(intPtr(s))))
	}
}

func TestValidFinishTime(t *testing.T) {
	require.True(t, ValidFinishTime(0))
	require.True(t, ValidFinishTime(MaxFinishTime))
	require.False(t, ValidFinishTime(-1))
	require.False(t, ValidFinishTime(MaxFinishTime+1))
}
