package ntuple

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sliink/mensura/internal/model"
)

// Writer appends events to an ntuple stream
type Writer struct {
	out      *bufio.Writer
	closer   io.Closer
	enc      *msgpack.Encoder
	branches map[string]struct{}
	events   int64
}

// Create creates an ntuple file, including missing parent directories
func Create(path string, branches []string, metadata map[string]string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	w, err := NewWriter(f, branches, metadata)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the header to out and returns a writer for the events
func NewWriter(out io.Writer, branches []string, metadata map[string]string) (*Writer, error) {
	buffered := bufio.NewWriter(out)
	w := &Writer{
		out:      buffered,
		enc:      msgpack.NewEncoder(buffered),
		branches: make(map[string]struct{}, len(branches)),
	}
	for _, b := range branches {
		w.branches[b] = struct{}{}
	}
	// Identical events must produce identical bytes
	w.enc.SetSortMapKeys(true)

	header := Header{
		Format:   FormatName,
		Version:  FormatVersion,
		Branches: append([]string(nil), branches...),
		Metadata: metadata,
	}
	if err := w.enc.Encode(&header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return w, nil
}

// Write appends one event. Values must belong to declared branches.
func (w *Writer) Write(event *model.Event) error {
	for name := range event.Values {
		if _, ok := w.branches[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownBranch, name)
		}
	}

	if err := w.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to write event %s: %w", event.ID, err)
	}
	w.events++
	return nil
}

// Events returns the number of events written
func (w *Writer) Events() int64 {
	return w.events
}

// Close flushes buffered data and closes the underlying file if the writer owns it
func (w *Writer) Close() error {
	if err := w.out.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return fmt.Errorf("failed to flush ntuple: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
