package trigger

import (
	"testing"
	"time"
)

// fixedSolar always reports the same next occurrence.
type fixedSolar struct {
	occurrence time.Time
}

func (f fixedSolar) NextOccurrence(event SolarEvent, after time.Time) (time.Time, error) {
	return f.occurrence, nil
}

func TestNextSunRun(t *testing.T) {
	now := time.Date(2026, 6, 21, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		occurrence   time.Time
		offset       time.Duration
		rescheduling bool
		want         time.Time
	}{
		{
			name:       "initial arm with positive offset",
			occurrence: now.Add(90 * time.Minute),
			offset:     30 * time.Minute,
			want:       now.Add(2 * time.Hour),
		},
		{
			name:       "initial arm with negative offset landing in the past pushes a day",
			occurrence: now.Add(30 * time.Minute),
			offset:     -time.Hour,
			want:       now.Add(30*time.Minute - time.Hour + 24*time.Hour),
		},
		{
			name: "rescheduling within 20h advances a day",
			// Just fired for <sunset - 1h>; the same sunset is still ahead.
			occurrence:   now.Add(time.Hour),
			offset:       -time.Hour,
			rescheduling: true,
			want:         now.Add(time.Hour + 24*time.Hour - time.Hour),
		},
		{
			name:         "rescheduling beyond 20h stays",
			occurrence:   now.Add(21 * time.Hour),
			offset:       time.Hour,
			rescheduling: true,
			want:         now.Add(22 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := nextSunRun(fixedSolar{tt.occurrence}, SolarSunset, tt.offset, now, tt.rescheduling)
			if err != nil {
				t.Fatalf("nextSunRun: %v", err)
			}
			if !run.Equal(tt.want) {
				t.Errorf("run = %v, want %v", run, tt.want)
			}
			if !run.After(now) {
				t.Errorf("run %v not after now %v", run, now)
			}
		})
	}
}
