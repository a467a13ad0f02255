// decode.go
package serialhelper

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Record is one framed unit emitted by the active framing strategy.
//
// Line framing produces text records: Text holds the line with trailing
// whitespace trimmed, and when the line parses as JSON, Value holds the
// structured result with Decoded set. A line that does not parse is not an
// error; it degrades to its trimmed text. Binary framings (inter-byte,
// byte-length) produce raw records and bypass decoding entirely.
type Record struct {
	// Raw is the exact framed byte sequence.
	Raw []byte
	// Text is the trimmed line for text records.
	Text string
	// Value is the decoded JSON value when Decoded is set.
	Value any
	// Decoded reports whether Value holds a structured decode of Text.
	Decoded bool
	// Binary marks records from the inter-byte and byte-length framings.
	Binary bool
}

// Payload returns the most useful representation of the record: the decoded
// value, the raw bytes for binary framings, or the trimmed text.
func (r Record) Payload() any {
	if r.Decoded {
		return r.Value
	}
	if r.Binary {
		return r.Raw
	}
	return r.Text
}

// noise reports whether the record carries nothing worth notifying: raw text
// that trims to nothing, or a decoded JSON string that is empty. Numeric
// records always pass, so a bare "0" line is delivered.
func (r Record) noise() bool {
	if r.Binary {
		return false
	}
	if r.Decoded {
		s, isString := r.Value.(string)
		return isString && s == ""
	}
	return r.Text == ""
}

// decodeLine turns one line-framed record into a Record, attempting the
// opportunistic JSON decode.
func decodeLine(raw []byte) Record {
	text := strings.TrimRightFunc(string(raw), unicode.IsSpace)
	rec := Record{Raw: raw, Text: text}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		rec.Value = value
		rec.Decoded = true
	}
	return rec
}

// binaryRecord wraps one record from a non-decoding framing mode.
func binaryRecord(raw []byte) Record {
	return Record{Raw: raw, Binary: true}
}
