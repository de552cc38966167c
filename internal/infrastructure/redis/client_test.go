package redis

import "testing"

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{
			name:  "entity state key",
			parts: []string{"STATE", "switch", "heater"},
			want:  "STATE:switch:heater",
		},
		{
			name:  "attribute state key",
			parts: []string{"STATE", "switch", "heater", "friendly_name"},
			want:  "STATE:switch:heater:friendly_name",
		},
		{
			name:  "scheduled job key",
			parts: []string{"SCHEDULED", "job-123"},
			want:  "SCHEDULED:job-123",
		},
		{
			name:  "single part",
			parts: []string{"STATE"},
			want:  "STATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.parts...); got != tt.want {
				t.Errorf("BuildKey(%v) = %q, want %q", tt.parts, got, tt.want)
			}
		})
	}
}
