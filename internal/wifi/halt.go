package wifi

import (
	"time"

	"github.com/awilliams/wifi-manager/internal/clock"
)

// Halt blink pattern: three short flashes then a pause.
const (
	haltFlashes = 3
	haltFlash   = 150 * time.Millisecond
	haltPause   = time.Second
)

type nopIndicator struct{}

func (nopIndicator) Set(bool) {}

// blinkCycle plays the halt pattern once.
func blinkCycle(ind Indicator, c clock.Monotonic) {
	for i := 0; i < haltFlashes; i++ {
		ind.Set(true)
		c.Sleep(haltFlash)
		ind.Set(false)
		c.Sleep(haltFlash)
	}
	c.Sleep(haltPause)
}

// haltForever returns a halt function that repeats the blink pattern and
// never returns.
func haltForever(ind Indicator, c clock.Monotonic) func(error) {
	return func(error) {
		for {
			blinkCycle(ind, c)
		}
	}
}
