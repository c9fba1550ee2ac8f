package telemetry

import (
	"context"
	"log"
	"time"
)

// LineCounter is satisfied by *capture.Session.
type LineCounter interface {
	Lines() uint64
}

// CaptureReporter periodically publishes a heartbeat and the number of lines
// captured since the previous report.
type CaptureReporter struct {
	publisher Publisher
	device    string
	interval  time.Duration
	last      uint64
}

func NewCaptureReporter(publisher Publisher, device string, interval time.Duration) *CaptureReporter {
	return &CaptureReporter{publisher: publisher, device: device, interval: interval}
}

// Run reports until ctx is done. The counter may be nil when nothing is being
// captured, in which case only heartbeats are sent.
func (r *CaptureReporter) Run(ctx context.Context, counter LineCounter) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.report(ctx, counter)
		}
	}
}

func (r *CaptureReporter) report(ctx context.Context, counter LineCounter) {
	if err := r.publisher.Publish(ctx, Heartbeat, r.device, 1); err != nil {
		log.Printf("Failed to publish heartbeat: %v\n", err)
	} else {
		log.Printf("Published heartbeat metric for device %s\n", r.device)
	}
	if counter == nil {
		return
	}
	lines := counter.Lines()
	delta := lines - r.last
	if lines < r.last {
		delta = lines
	}
	r.last = lines
	if err := r.publisher.Publish(ctx, LinesCaptured, r.device, float64(delta)); err != nil {
		log.Printf("Failed to publish %s metric: %v\n", LinesCaptured, err)
	}
}
