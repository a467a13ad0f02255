// parser/line.go
package parser

import "bytes"

// lineParser splits the stream on a delimiter. The delimiter itself is not
// part of the emitted record. Bytes after the last delimiter stay buffered
// until the next Feed completes them.
type lineParser struct {
	delim []byte
	emit  Emit
	buf   []byte
}

func newLine(delim string, emit Emit) *lineParser {
	return &lineParser{delim: []byte(delim), emit: emit}
}

// Feed appends data to the buffer and emits every completed line.
func (p *lineParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
	for {
		i := bytes.Index(p.buf, p.delim)
		if i < 0 {
			return
		}
		record := make([]byte, i)
		copy(record, p.buf[:i])
		p.buf = p.buf[i+len(p.delim):]
		p.emit(record)
	}
}

// Reset drops any buffered partial line.
func (p *lineParser) Reset() {
	p.buf = nil
}
