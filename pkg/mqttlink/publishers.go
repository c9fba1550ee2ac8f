package mqttlink

import (
	"context"
	"dancavallaro.com/devicectl/pkg/events"
	"github.com/goccy/go-json"
	"time"
)

type publisher interface {
	Publish(topic string, payload []byte) error
}

// LinePublisher forwards captured lines to a topic. It is a capture.Sink.
type LinePublisher struct {
	link  publisher
	topic string
}

func NewLinePublisher(link *Link, topic string) *LinePublisher {
	return &LinePublisher{link, topic}
}

func (p *LinePublisher) Append(line string) error {
	return p.link.Publish(p.topic, []byte(line))
}

type eventPayload struct {
	Time     time.Time `json:"time"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
}

// EventPublisher mirrors an event log to a topic. Handle is meant to be passed to
// events.Log.Subscribe; it only queues, and Run does the publishing so the event log
// never waits on the broker. Events that arrive while the queue is full are dropped.
type EventPublisher struct {
	link   publisher
	topic  string
	logger Logger
	queue  chan events.LogEvent
}

func NewEventPublisher(link *Link, topic string, logger Logger) *EventPublisher {
	return newEventPublisher(link, topic, logger)
}

func newEventPublisher(link publisher, topic string, logger Logger) *EventPublisher {
	return &EventPublisher{link: link, topic: topic, logger: logger, queue: make(chan events.LogEvent, 64)}
}

func (p *EventPublisher) Handle(ev events.LogEvent) {
	select {
	case p.queue <- ev:
	default:
	}
}

func (p *EventPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.queue:
			payload, err := json.Marshal(eventPayload{ev.Time, ev.Severity.String(), ev.Message})
			if err == nil {
				err = p.link.Publish(p.topic, payload)
			}
			if err != nil && p.logger != nil {
				p.logger.Printf("Failed to publish event: %v\n", err)
			}
		}
	}
}
