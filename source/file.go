package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/thisisjab/logtable/entity"
)

type FileLogSourceConfig struct {
	Name           string   `yaml:"-"`
	ProcessorNames []string `yaml:"-"`
	Path           string   `yaml:"path"`
	// FromBeginning reads lines already in the file before following it.
	FromBeginning bool `yaml:"from_beginning"`
}

// FileLogSource follows a file and emits every line appended to it. When the
// file is replaced (rotation, editors writing a new inode) it is reopened and
// read from the start.
type FileLogSource struct {
	cfg    FileLogSourceConfig
	logger *slog.Logger
}

func NewFileLogSource(logger *slog.Logger, cfg FileLogSourceConfig) (*FileLogSource, error) {
	if cfg.Path == "" {
		return nil, errors.New("file source needs a path")
	}
	return &FileLogSource{cfg: cfg, logger: logger}, nil
}

func (f *FileLogSource) Name() string {
	return f.cfg.Name
}

func (f *FileLogSource) ProcessorNames() []string {
	return f.cfg.ProcessorNames
}

func (f *FileLogSource) Provide(ctx context.Context, logChan chan<- entity.RawLogRecord) error {
	file, err := os.Open(f.cfg.Path)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer func() { file.Close() }()

	if !f.cfg.FromBeginning {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so a file recreated under the same name is noticed.
	if err := watcher.Add(filepath.Dir(f.cfg.Path)); err != nil {
		return fmt.Errorf("cannot add file to watcher: %w", err)
	}

	lines := newLineReader(f.cfg.Name, file)
	if f.cfg.FromBeginning {
		if err := lines.drain(ctx, logChan); err != nil {
			return err
		}
	}

	target := filepath.Clean(f.cfg.Path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				f.logger.Debug("fsnotify watcher channel is closed")
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}

			switch {
			case event.Has(fsnotify.Write):
			case event.Has(fsnotify.Create):
				f.logger.Info("log file replaced, reopening", "path", f.cfg.Path)
				next, err := os.Open(f.cfg.Path)
				if err != nil {
					return fmt.Errorf("cannot reopen file: %w", err)
				}
				file.Close()
				file = next
				lines.reset(file)
			default:
				f.logger.Debug("received unhandled event from fsnotify", "event", event.String())
				continue
			}

			if err := lines.drain(ctx, logChan); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
