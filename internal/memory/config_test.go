package memory

import (
	"runtime/debug"
	"testing"
)

func TestConfigureFromEnv(t *testing.T) {
	const gib = 1 << 30

	tests := []struct {
		name       string
		goMemLimit string
		limit      string
		ratio      string
		want       ConfigResult
	}{
		{
			name: "nothing set",
			want: ConfigResult{Source: sourceNone},
		},
		{
			name:  "container limit with default ratio",
			limit: "1073741824",
			want: ConfigResult{
				Configured:     true,
				Source:         sourceMemoryLimit,
				ContainerLimit: gib,
				GoMemLimit:     gib * 3 / 4,
				Ratio:          DefaultMemoryRatio,
			},
		},
		{
			name:  "custom ratio",
			limit: "1073741824",
			ratio: "0.5",
			want: ConfigResult{
				Configured:     true,
				Source:         sourceMemoryLimit,
				ContainerLimit: gib,
				GoMemLimit:     gib / 2,
				Ratio:          0.5,
			},
		},
		{
			name:  "ratio out of range",
			limit: "1073741824",
			ratio: "1.5",
			want: ConfigResult{
				Configured:     true,
				Source:         sourceMemoryLimit,
				ContainerLimit: gib,
				GoMemLimit:     gib * 3 / 4,
				Ratio:          DefaultMemoryRatio,
			},
		},
		{
			name:  "unparsable ratio",
			limit: "1073741824",
			ratio: "half",
			want: ConfigResult{
				Configured:     true,
				Source:         sourceMemoryLimit,
				ContainerLimit: gib,
				GoMemLimit:     gib * 3 / 4,
				Ratio:          DefaultMemoryRatio,
			},
		},
		{
			name:  "invalid container limit",
			limit: "512Mi",
			want:  ConfigResult{Source: sourceNone},
		},
		{
			name:  "negative container limit",
			limit: "-1",
			want:  ConfigResult{Source: sourceNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := debug.SetMemoryLimit(-1)
			t.Cleanup(func() { debug.SetMemoryLimit(original) })

			t.Setenv("GOMEMLIMIT", tt.goMemLimit)
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()
			if got != tt.want {
				t.Errorf("ConfigureFromEnv() = %+v, want %+v", got, tt.want)
			}
			if tt.want.Configured {
				if limit := debug.SetMemoryLimit(-1); limit != tt.want.GoMemLimit {
					t.Errorf("runtime limit = %d, want %d", limit, tt.want.GoMemLimit)
				}
			}
		})
	}
}

func TestConfigureFromEnv_GOMEMLIMITTakesPrecedence(t *testing.T) {
	original := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(original) })

	// The runtime reads GOMEMLIMIT only at startup.
	debug.SetMemoryLimit(500 << 20)
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	got := ConfigureFromEnv()
	want := ConfigResult{Configured: true, Source: sourceGOMEMLIMIT, GoMemLimit: 500 << 20}
	if got != want {
		t.Errorf("ConfigureFromEnv() = %+v, want %+v", got, want)
	}
	if limit := debug.SetMemoryLimit(-1); limit != 500<<20 {
		t.Errorf("runtime limit changed to %d", limit)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{805306368, "768.0 MiB"},
		{1 << 30, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
