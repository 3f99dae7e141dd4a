package vcursor

import "time"

// Config holds the timing policy of the cursor protocol. Zero or negative
// fields take their DefaultConfig value.
type Config struct {
	// Announcements older than this are dropped as unreliable.
	StalenessCeiling time.Duration
	// Announcements arriving this soon after a local content update are
	// dropped; they were positioned against the replaced document.
	ContentGraceWindow time.Duration

	RefreshResponseInterval    time.Duration
	RefreshAllResponseInterval time.Duration
	RefreshSettleDelay         time.Duration
	RefreshAllJitter           time.Duration
	RefreshRequestInterval     time.Duration

	// AnnounceInterval rate-limits outbound cursor announcements. Changes
	// inside the interval are coalesced into one trailing announcement.
	AnnounceInterval time.Duration

	SettleDelay            time.Duration
	LightweightSettleDelay time.Duration

	ContextWindow int
}

func DefaultConfig() Config {
	return Config{
		StalenessCeiling:           15 * time.Second,
		ContentGraceWindow:         150 * time.Millisecond,
		RefreshResponseInterval:    time.Second,
		RefreshAllResponseInterval: 500 * time.Millisecond,
		RefreshSettleDelay:         100 * time.Millisecond,
		RefreshAllJitter:           400 * time.Millisecond,
		RefreshRequestInterval:     time.Second,
		AnnounceInterval:           50 * time.Millisecond,
		SettleDelay:                300 * time.Millisecond,
		LightweightSettleDelay:     100 * time.Millisecond,
		ContextWindow:              DefaultContextWindow,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	setDuration := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	setDuration(&c.StalenessCeiling, d.StalenessCeiling)
	setDuration(&c.ContentGraceWindow, d.ContentGraceWindow)
	setDuration(&c.RefreshResponseInterval, d.RefreshResponseInterval)
	setDuration(&c.RefreshAllResponseInterval, d.RefreshAllResponseInterval)
	setDuration(&c.RefreshSettleDelay, d.RefreshSettleDelay)
	setDuration(&c.RefreshAllJitter, d.RefreshAllJitter)
	setDuration(&c.RefreshRequestInterval, d.RefreshRequestInterval)
	setDuration(&c.AnnounceInterval, d.AnnounceInterval)
	setDuration(&c.SettleDelay, d.SettleDelay)
	setDuration(&c.LightweightSettleDelay, d.LightweightSettleDelay)
	if c.ContextWindow <= 0 {
		c.ContextWindow = d.ContextWindow
	}
	return c
}
