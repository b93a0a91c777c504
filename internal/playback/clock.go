package playback

import "time"

// Clock hands out tick channels. The scheduler never touches
// time.Ticker directly so tests can drive transitions manually.
type Clock interface {
	Tick(period time.Duration) (ticks <-chan time.Time, stop func())
}

type tickerClock struct{}

// NewTickerClock returns the wall-clock implementation.
func NewTickerClock() Clock {
	return tickerClock{}
}

func (tickerClock) Tick(period time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(period)
	return t.C, t.Stop
}
