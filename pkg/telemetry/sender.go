package telemetry

import (
	"context"
	"dancavallaro.com/devicectl/pkg/controller"
	"log"
	"time"
)

const publishTimeout = 10 * time.Second

// InstrumentedSender counts every dispatched command as sent or failed. Metrics are
// published in the background so a slow CloudWatch call never holds up a transition.
type InstrumentedSender struct {
	sender    controller.Sender
	publisher Publisher
	device    string
}

func NewInstrumentedSender(sender controller.Sender, publisher Publisher, device string) *InstrumentedSender {
	return &InstrumentedSender{sender: sender, publisher: publisher, device: device}
}

func (s *InstrumentedSender) Send(ctx context.Context, command string) (int, error) {
	n, err := s.sender.Send(ctx, command)
	metric := CommandsSent
	if err != nil {
		metric = CommandFailures
	}
	go s.record(metric)
	return n, err
}

func (s *InstrumentedSender) record(metric string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, metric, s.device, 1); err != nil {
		log.Printf("Failed to publish %s metric: %v\n", metric, err)
	}
}
