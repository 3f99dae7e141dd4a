package vcursor

import (
	"testing"
	"time"
)

func TestConfigWithDefaults(t *testing.T) {
	d := DefaultConfig()
	tests := []struct {
		name string
		cfg  Config
		want Config
	}{
		{
			name: "zero",
			cfg:  Config{},
			want: d,
		},
		{
			name: "negative",
			cfg:  Config{RefreshAllJitter: -time.Second, SettleDelay: -1, ContextWindow: -3},
			want: d,
		},
		{
			name: "set fields kept",
			cfg:  Config{AnnounceInterval: time.Second, ContextWindow: 4},
			want: func() Config {
				c := d
				c.AnnounceInterval = time.Second
				c.ContextWindow = 4
				return c
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.withDefaults(); got != tt.want {
				t.Errorf("withDefaults = %+v, want %+v", got, tt.want)
			}
		})
	}
}
