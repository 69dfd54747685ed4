package main

import (
	"context"

	"github.com/shimmeringbee/logwrap"
)

// loggingPin stands in for a hardware indicator output, tracing level changes
// to the log. Only wired when verbose logging is enabled, blink patterns are
// noisy.
type loggingPin struct {
	slot   int
	logger logwrap.Logger
}

func (p *loggingPin) Set(on bool) {
	p.logger.LogDebug(context.Background(), "Indicator level changed.", logwrap.Datum("Slot", p.slot), logwrap.Datum("On", on))
}
