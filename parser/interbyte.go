// parser/interbyte.go
package parser

import (
	"sync"
	"time"
)

// maxInterByteBuffer caps accumulation for streams that never pause. A full
// buffer is emitted as a record immediately instead of growing without bound.
const maxInterByteBuffer = 65536

// interByteParser closes a record when the line goes quiet for the
// configured interval. The flush timer is re-armed on every Feed, so a
// steady stream keeps extending the current record until the cap is hit.
type interByteParser struct {
	interval time.Duration
	emit     Emit

	mu    sync.Mutex
	buf   []byte
	timer *time.Timer
}

func newInterByte(interval time.Duration, emit Emit) *interByteParser {
	return &interByteParser{interval: interval, emit: emit}
}

// Feed buffers data and re-arms the idle timer.
func (p *interByteParser) Feed(data []byte) {
	p.mu.Lock()
	p.buf = append(p.buf, data...)
	if len(p.buf) >= maxInterByteBuffer {
		record := p.buf
		p.buf = nil
		if p.timer != nil {
			p.timer.Stop()
		}
		p.mu.Unlock()
		p.emit(record)
		return
	}
	if p.timer == nil {
		p.timer = time.AfterFunc(p.interval, p.flush)
	} else {
		p.timer.Reset(p.interval)
	}
	p.mu.Unlock()
}

// flush runs on timer expiry and emits whatever accumulated since the last
// record. The callback is invoked outside the lock.
func (p *interByteParser) flush() {
	p.mu.Lock()
	if len(p.buf) == 0 {
		p.mu.Unlock()
		return
	}
	record := p.buf
	p.buf = nil
	p.mu.Unlock()
	p.emit(record)
}

// Reset drops buffered bytes and stops the pending idle timer.
func (p *interByteParser) Reset() {
	p.mu.Lock()
	p.buf = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
}
