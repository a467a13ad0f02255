// parser/parser_test.go
package parser

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers emitted records for assertions.
type collector struct {
	records [][]byte
	ch      chan []byte
}

func newCollector() *collector {
	return &collector{ch: make(chan []byte, 16)}
}

func (c *collector) emit(record []byte) {
	c.records = append(c.records, record)
	c.ch <- record
}

func (c *collector) wait(t *testing.T, timeout time.Duration) []byte {
	t.Helper()
	select {
	case rec := <-c.ch:
		return rec
	case <-time.After(timeout):
		t.Fatal("timeout waiting for record")
		return nil
	}
}

func TestLine_SplitsOnDelimiter(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: Line}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte("one\ntwo\nthr"))
	require.Len(t, col.records, 2)
	assert.Equal(t, "one", string(col.records[0]))
	assert.Equal(t, "two", string(col.records[1]))

	// the partial tail completes on the next feed
	p.Feed([]byte("ee\n"))
	require.Len(t, col.records, 3)
	assert.Equal(t, "three", string(col.records[2]))
}

func TestLine_CustomDelimiter(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: Line, Delimiter: "\r\n"}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte("a\r\nb\nc\r\n"))
	require.Len(t, col.records, 2)
	assert.Equal(t, "a", string(col.records[0]))
	// the bare \n is not a delimiter here
	assert.Equal(t, "b\nc", string(col.records[1]))
}

func TestLine_EmitsEmptyRecords(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: Line}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte("\n\n"))
	require.Len(t, col.records, 2)
	assert.Empty(t, col.records[0])
	assert.Empty(t, col.records[1])
}

func TestLine_ResetDropsPartial(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: Line}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte("dangling"))
	p.Reset()
	p.Feed([]byte("fresh\n"))

	require.Len(t, col.records, 1)
	assert.Equal(t, "fresh", string(col.records[0]))
}

func TestLine_RecordSurvivesBufferReuse(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: Line}, col.emit)
	require.NoError(t, err)

	feed := []byte("first\n")
	p.Feed(feed)
	copy(feed, "XXXXXX")
	p.Feed([]byte("second\n"))

	require.Len(t, col.records, 2)
	assert.Equal(t, "first", string(col.records[0]))
}

func TestInterByte_EmitsAfterIdleGap(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: InterByte, Interval: 20 * time.Millisecond}, col.emit)
	require.NoError(t, err)
	defer p.Reset()

	p.Feed([]byte{0x01, 0x02})
	p.Feed([]byte{0x03})

	rec := col.wait(t, time.Second)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, rec)
}

func TestInterByte_FeedExtendsRecord(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: InterByte, Interval: 40 * time.Millisecond}, col.emit)
	require.NoError(t, err)
	defer p.Reset()

	// keep feeding inside the idle window; nothing may flush in between
	for i := 0; i < 4; i++ {
		p.Feed([]byte{byte(i)})
		time.Sleep(10 * time.Millisecond)
	}

	rec := col.wait(t, time.Second)
	assert.Equal(t, []byte{0, 1, 2, 3}, rec)
}

func TestInterByte_ResetCancelsFlush(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: InterByte, Interval: 20 * time.Millisecond}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte{0xAA})
	p.Reset()

	select {
	case rec := <-col.ch:
		t.Fatalf("unexpected record after reset: %v", rec)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestInterByte_CapFlushesOversizedRecord(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: InterByte, Interval: time.Hour}, col.emit)
	require.NoError(t, err)
	defer p.Reset()

	p.Feed(bytes.Repeat([]byte{0x55}, maxInterByteBuffer))

	rec := col.wait(t, time.Second)
	assert.Len(t, rec, maxInterByteBuffer)
}

func TestByteLength_Chunks(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: ByteLength, Length: 3}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte{1, 2, 3, 4, 5, 6, 7})
	require.Len(t, col.records, 2)
	assert.Equal(t, []byte{1, 2, 3}, col.records[0])
	assert.Equal(t, []byte{4, 5, 6}, col.records[1])

	// the leftover byte completes the next chunk
	p.Feed([]byte{8, 9})
	require.Len(t, col.records, 3)
	assert.Equal(t, []byte{7, 8, 9}, col.records[2])
}

func TestByteLength_DefaultIsSingleBytes(t *testing.T) {
	col := newCollector()
	p, err := New(Config{Type: ByteLength}, col.emit)
	require.NoError(t, err)

	p.Feed([]byte{10, 20})
	require.Len(t, col.records, 2)
	assert.Equal(t, []byte{10}, col.records[0])
	assert.Equal(t, []byte{20}, col.records[1])
}

func TestNew_RequiresEmit(t *testing.T) {
	_, err := New(Config{Type: Line}, nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{Type: Line}.Validate())
	assert.NoError(t, Config{Type: InterByte, Interval: time.Millisecond}.Validate())
	assert.NoError(t, Config{Type: ByteLength, Length: 8}.Validate())
	assert.Error(t, Config{Type: InterByte, Interval: -1}.Validate())
	assert.Error(t, Config{Type: ByteLength, Length: -1}.Validate())
	assert.Error(t, Config{Type: Type(99)}.Validate())
}

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
	}{
		{"", Line},
		{"line", Line},
		{"interbyte", InterByte},
		{"idle-timeout", InterByte},
		{"bytelength", ByteLength},
		{"fixed-length", ByteLength},
	}
	for _, tc := range cases {
		got, err := ParseType(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseType("morse")
	assert.Error(t, err)
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "line", Line.String())
	assert.Equal(t, "interbyte", InterByte.String())
	assert.Equal(t, "bytelength", ByteLength.String())
}
