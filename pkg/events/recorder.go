package events

import (
	"fmt"
	"sync"
	"time"
)

// Recorder is an Emitter that keeps everything, for tests and one-shot tools.
type Recorder struct {
	mu     sync.Mutex
	events []LogEvent
}

func (r *Recorder) Emit(severity Severity, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, LogEvent{Time: time.Now(), Message: fmt.Sprintf(format, args...), Severity: severity})
}

func (r *Recorder) Events() []LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEvent(nil), r.events...)
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Message
	}
	return out
}

func (r *Recorder) BySeverity(severity Severity) []LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LogEvent
	for _, ev := range r.events {
		if ev.Severity == severity {
			out = append(out, ev)
		}
	}
	return out
}
