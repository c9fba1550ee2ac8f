// Package serialtest provides in-memory serial ports for tests.
package serialtest

import (
	"dancavallaro.com/devicectl/pkg/serialport"
	"errors"
	"sync"
	"time"
)

var ErrPortClosed = errors.New("serialtest: port closed")

// Port is a scripted serial handle. Reads pop queued chunks one at a time; once the
// queue is empty a configured read error is returned, otherwise an empty read.
type Port struct {
	mu         sync.Mutex
	chunks     [][]byte
	readErr    error
	writes     [][]byte
	shortWrite int
	writeErr   error
	closeErr   error
	open       bool
	closes     int
}

func NewPort() *Port {
	return &Port{}
}

func (p *Port) Feed(chunks ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, chunks...)
}

// FailReads makes every read after the queued chunks fail with err.
func (p *Port) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// ShortWrites caps every write at n bytes.
func (p *Port) ShortWrites(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shortWrite = n
}

func (p *Port) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *Port) FailClose(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0, ErrPortClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	n := len(b)
	if p.shortWrite > 0 && n > p.shortWrite {
		n = p.shortWrite
	}
	p.writes = append(p.writes, append([]byte(nil), b[:n]...))
	return n, nil
}

func (p *Port) ReadAvailable() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, ErrPortClosed
	}
	if len(p.chunks) > 0 {
		chunk := p.chunks[0]
		p.chunks = p.chunks[1:]
		return chunk, nil
	}
	if p.readErr != nil {
		return nil, p.readErr
	}
	return nil, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.closes++
	return p.closeErr
}

func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks)
}

func (p *Port) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Writes returns everything written so far, one string per Write call.
func (p *Port) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	for i, w := range p.writes {
		out[i] = string(w)
	}
	return out
}

// Opener hands out Port. Every Open reopens the same Port, so a test can script a
// device once and observe it across several open/close cycles.
type Opener struct {
	Port *Port

	mu     sync.Mutex
	err    error
	opens  int
	names  []string
	bauds  []int
	onOpen func()
}

func NewOpener() *Opener {
	return &Opener{Port: NewPort()}
}

// FailOpens makes Open fail with err until called again with nil.
func (o *Opener) FailOpens(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// OnOpen registers a hook run inside every successful Open.
func (o *Opener) OnOpen(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onOpen = fn
}

func (o *Opener) Open(name string, baud int, _ time.Duration) (serialport.Port, error) {
	o.mu.Lock()
	o.names = append(o.names, name)
	o.bauds = append(o.bauds, baud)
	err := o.err
	hook := o.onOpen
	if err == nil {
		o.opens++
	}
	o.mu.Unlock()

	if err != nil {
		return nil, err
	}
	o.Port.mu.Lock()
	o.Port.open = true
	o.Port.mu.Unlock()
	if hook != nil {
		hook()
	}
	return o.Port, nil
}

// Opens counts successful opens.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Attempts returns every port name Open was called with, successful or not.
func (o *Opener) Attempts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

func (o *Opener) Bauds() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.bauds...)
}
