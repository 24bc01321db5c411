package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron_Next(t *testing.T) {
	base := time.Date(2024, 3, 14, 10, 17, 42, 0, time.UTC) // Thursday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/5 * * * *", time.Date(2024, 3, 14, 10, 20, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC)},
		{"30 10-12 * * *", time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)},
		{"0 8 1 * *", time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)},
		{"15,45 * * * *", time.Date(2024, 3, 14, 10, 45, 0, 0, time.UTC)},
		{"@daily", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := ParseCron(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Next(base))
		})
	}
}

func TestParseCron_NextIsStrictlyAfter(t *testing.T) {
	s, err := ParseCron("0 3 * * *")
	require.NoError(t, err)

	at := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, at.AddDate(0, 0, 1), s.Next(at))
}

func TestParseCron_Invalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "* 24 * * *", "*/0 * * * *", "a * * * *", "5-1 * * * *"} {
		_, err := ParseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseCron_NeverMatches(t *testing.T) {
	s, err := ParseCron("0 0 31 2 *")
	require.NoError(t, err)
	assert.True(t, s.Next(time.Now()).IsZero())
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "@every 24h0m0s", s.String())

	s, err = ParseSchedule("0 3 * * *", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", s.String())

	_, err = ParseSchedule("", 0)
	assert.Error(t, err)
}
