// parser/bytelength.go
package parser

// byteLengthParser emits a record for every length bytes received.
type byteLengthParser struct {
	length int
	emit   Emit
	buf    []byte
}

func newByteLength(length int, emit Emit) *byteLengthParser {
	return &byteLengthParser{length: length, emit: emit}
}

// Feed buffers data and emits every full chunk.
func (p *byteLengthParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
	for len(p.buf) >= p.length {
		record := make([]byte, p.length)
		copy(record, p.buf[:p.length])
		p.buf = p.buf[p.length:]
		p.emit(record)
	}
}

// Reset drops any buffered partial chunk.
func (p *byteLengthParser) Reset() {
	p.buf = nil
}
