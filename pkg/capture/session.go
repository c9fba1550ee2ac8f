package capture

import (
	"context"
	"dancavallaro.com/devicectl/pkg/events"
	"dancavallaro.com/devicectl/pkg/serialport"
	"go.uber.org/atomic"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Session is one run of the capture loop. It cannot be restarted; start a new one.
type Session struct {
	engine *Engine
	sink   Sink

	// owned by the loop goroutine
	port    serialport.Port
	held    bool
	carry   []byte
	partial string
	// the last flushed partial ended in \r, so a leading \n closes that line
	pendingLF bool

	ctx      context.Context
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error

	lines   atomic.Uint64
	dropped atomic.Uint64
}

// Stop ends the session and waits for the port to be closed. It is safe to call
// more than once and after the session ended on its own.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err is the error that ended the session, nil after a requested stop.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Lines counts lines delivered to the sink.
func (s *Session) Lines() uint64 {
	return s.lines.Load()
}

// Dropped counts undecodable chunks.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Session) loop() {
	defer close(s.done)
	defer s.shutdown()

	ticker := time.NewTicker(s.engine.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if s.stopping() {
			return
		}
		if s.engine.arbiter.Contended() && !s.yield() {
			return
		}

		chunk, err := s.port.ReadAvailable()
		if len(chunk) > 0 {
			s.consume(chunk)
		} else {
			// the device went quiet mid-line; persist what we have
			s.flushPartial()
		}
		if err != nil {
			s.err = &ReadError{Port: s.engine.cfg.Port, Err: err}
			return
		}

		select {
		case <-s.stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) stopping() bool {
	select {
	case <-s.stop:
		return true
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// yield closes the port so a command can be dispatched on the same device, then
// takes it back. It returns false when the session should end instead.
func (s *Session) yield() bool {
	ev := s.engine.events
	ev.Emit(events.Info, "capture paused for command dispatch")
	_ = s.port.Close()
	s.port = nil
	s.engine.arbiter.Release()
	s.held = false

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := s.engine.arbiter.Acquire(ctx); err != nil {
		return false
	}
	s.held = true

	port, err := s.engine.open()
	if err != nil {
		s.err = err
		return false
	}
	s.port = port
	ev.Emit(events.Info, "capture resumed")
	return true
}

func (s *Session) consume(chunk []byte) {
	buf := chunk
	if carried := s.carry; len(carried) > 0 {
		s.carry = nil
		buf = append(carried, chunk...)
		if !utf8.FullRune(buf) {
			s.carry = buf
			return
		}
		if r, size := utf8.DecodeRune(buf); r == utf8.RuneError && size <= 1 {
			// the held-back bytes never became a character; only they are lost
			s.drop(len(carried))
			buf = chunk
		}
	}

	// hold back a multi-byte character split across reads
	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	text, rest := buf[:cut], buf[cut:]

	if !utf8.Valid(text) {
		s.drop(len(buf))
		return
	}
	s.carry = append([]byte(nil), rest...)
	if len(text) == 0 {
		return
	}

	str := string(text)
	if s.pendingLF {
		s.pendingLF = false
		str = strings.TrimPrefix(str, "\n")
	}
	lines := strings.Split(s.partial+str, "\n")
	s.partial = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		s.append(strings.TrimSuffix(line, "\r"))
	}
}

// drop discards n undecodable bytes. Text before the gap is written as its own line
// so it is never joined to text after it.
func (s *Session) drop(n int) {
	s.flushPartial()
	s.pendingLF = false
	s.dropped.Inc()
	s.engine.events.Emit(events.Warn, "%v", &DecodeError{Port: s.engine.cfg.Port, Bytes: n})
}

func (s *Session) flushPartial() {
	if s.partial == "" {
		return
	}
	s.pendingLF = strings.HasSuffix(s.partial, "\r")
	s.append(strings.TrimSuffix(s.partial, "\r"))
	s.partial = ""
}

func (s *Session) append(line string) {
	if err := s.sink.Append(line); err != nil {
		s.engine.events.Emit(events.Error, "sink: %v", err)
		return
	}
	s.lines.Inc()
}

func (s *Session) shutdown() {
	s.flushPartial()
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	if s.held {
		s.engine.arbiter.Release()
		s.held = false
	}
	if s.err != nil {
		s.engine.events.Emit(events.Error, "capture stopped: %v", s.err)
	} else {
		s.engine.events.Emit(events.Info, "capture stopped")
	}
}
