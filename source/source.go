// Package source provides the log sources the engine reads raw lines from.
package source

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"github.com/thisisjab/logtable/entity"
)

// lineReader turns a byte stream into raw records, one per line. A trailing
// line without a newline is held back until the rest of it arrives.
type lineReader struct {
	name    string
	r       *bufio.Reader
	partial []byte
}

func newLineReader(name string, r io.Reader) *lineReader {
	return &lineReader{name: name, r: bufio.NewReader(r)}
}

func (lr *lineReader) reset(r io.Reader) {
	lr.r.Reset(r)
	lr.partial = nil
}

// drain sends every complete line currently readable.
func (lr *lineReader) drain(ctx context.Context, logChan chan<- entity.RawLogRecord) error {
	for {
		chunk, err := lr.r.ReadBytes('\n')
		if len(chunk) > 0 {
			lr.partial = append(lr.partial, chunk...)
			if chunk[len(chunk)-1] == '\n' {
				line := lr.partial
				lr.partial = nil
				if err := lr.send(ctx, line, logChan); err != nil {
					return err
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// flush sends a held back partial line, if any.
func (lr *lineReader) flush(ctx context.Context, logChan chan<- entity.RawLogRecord) error {
	line := lr.partial
	lr.partial = nil
	return lr.send(ctx, line, logChan)
}

func (lr *lineReader) send(ctx context.Context, line []byte, logChan chan<- entity.RawLogRecord) error {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil
	}

	select {
	case logChan <- entity.RawLogRecord{Source: lr.name, Data: line, Timestamp: time.Now()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
