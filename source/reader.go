package source

import (
	"context"
	"io"

	"github.com/thisisjab/logtable/entity"
)

// ReaderLogSource emits the lines of an io.Reader, such as stdin, and stops
// at EOF.
type ReaderLogSource struct {
	name           string
	r              io.Reader
	processorNames []string
}

func NewReaderLogSource(name string, r io.Reader, processorNames []string) *ReaderLogSource {
	return &ReaderLogSource{name: name, r: r, processorNames: processorNames}
}

func (s *ReaderLogSource) Name() string {
	return s.name
}

func (s *ReaderLogSource) ProcessorNames() []string {
	return s.processorNames
}

func (s *ReaderLogSource) Provide(ctx context.Context, logChan chan<- entity.RawLogRecord) error {
	lines := newLineReader(s.name, s.r)
	if err := lines.drain(ctx, logChan); err != nil {
		return err
	}
	return lines.flush(ctx, logChan)
}
