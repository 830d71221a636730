package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		deadline time.Time
		want     Remaining
	}{
		{
			name:     "one of each unit",
			deadline: now.Add(90061 * time.Second),
			want:     Remaining{Days: 1, Hours: 1, Minutes: 1, Seconds: 1, TotalMillis: 90061000},
		},
		{
			name:     "sub-second remainder is dropped",
			deadline: now.Add(59*time.Second + 999*time.Millisecond),
			want:     Remaining{Seconds: 59, TotalMillis: 59999},
		},
		{
			name:     "no month arithmetic",
			deadline: now.Add(40 * 24 * time.Hour),
			want:     Remaining{Days: 40, TotalMillis: 40 * 24 * 3600 * 1000},
		},
		{
			name:     "exactly now is expired",
			deadline: now,
			want:     Remaining{Expired: true},
		},
		{
			name:     "past is expired",
			deadline: now.Add(-time.Hour),
			want:     Remaining{Expired: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.deadline, now))
		})
	}
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		left time.Duration
		want Urgency
	}{
		{time.Hour, UrgencyUrgent},
		{24*time.Hour + 59*time.Minute, UrgencyUrgent},
		{25 * time.Hour, UrgencyWarning},
		{72*time.Hour + 30*time.Minute, UrgencyWarning},
		{73 * time.Hour, UrgencyNormal},
		{10 * 24 * time.Hour, UrgencyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.left.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(now.Add(tt.left), now).Urgency())
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1d 1h 1m", Format(Compute(now.Add(90061*time.Second), now)))
	assert.Equal(t, "23h 59m 59s", Format(Compute(now.Add(24*time.Hour-time.Second), now)))
	assert.Equal(t, "1d 0h 0m", Format(Compute(now.Add(24*time.Hour), now)))
	assert.Equal(t, "0h 0m 5s", Format(Compute(now.Add(5*time.Second), now)))
	assert.Equal(t, "Expired", Format(Compute(now.Add(-time.Second), now)))
}
