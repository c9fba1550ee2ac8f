// Package events carries observational log events from the controller and the capture
// engine to whatever is presenting them. Events have no control meaning.
package events

import (
	"fmt"
	"sync"
	"time"
)

type Severity int

const (
	Info Severity = iota
	Warn
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

type LogEvent struct {
	Time     time.Time
	Message  string
	Severity Severity
}

type Emitter interface {
	Emit(severity Severity, format string, args ...interface{})
}

type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

const defaultHistory = 200

// Log timestamps events and hands them to every subscriber in emission order.
// Subscribers run synchronously on the emitting goroutine and must not block.
type Log struct {
	mu      sync.Mutex
	now     func() time.Time
	subs    map[int]func(LogEvent)
	nextSub int
	history []LogEvent
	limit   int
}

func NewLog() *Log {
	return &Log{
		now:   time.Now,
		subs:  make(map[int]func(LogEvent)),
		limit: defaultHistory,
	}
}

func (l *Log) Emit(severity Severity, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := LogEvent{Time: l.now(), Message: fmt.Sprintf(format, args...), Severity: severity}
	l.history = append(l.history, ev)
	if len(l.history) > l.limit {
		l.history = l.history[len(l.history)-l.limit:]
	}
	// map iteration order is random; deliver in subscription order
	for id := 0; id < l.nextSub; id++ {
		if fn, ok := l.subs[id]; ok {
			fn(ev)
		}
	}
}

// Subscribe registers fn for every future event. The returned func unsubscribes.
func (l *Log) Subscribe(fn func(LogEvent)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Recent returns up to n of the latest events, oldest first.
func (l *Log) Recent(n int) []LogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.history) {
		n = len(l.history)
	}
	return append([]LogEvent(nil), l.history[len(l.history)-n:]...)
}

var levelTags = map[Severity]string{Info: "INF", Warn: "WRN", Error: "ERR"}

// LogTo mirrors every event into a process logger.
func (l *Log) LogTo(logger Logger) (cancel func()) {
	return l.Subscribe(func(ev LogEvent) {
		logger.Printf("[%s] %s", levelTags[ev.Severity], ev.Message)
	})
}
