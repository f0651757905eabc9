package ntuple

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sliink/mensura/internal/model"
)

// Reader reads events from an ntuple stream sequentially
type Reader struct {
	dec    *msgpack.Decoder
	closer io.Closer
	header Header
	read   int64
}

// Open opens an ntuple file and reads its header
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header from in and returns a reader for the events
func NewReader(in io.Reader) (*Reader, error) {
	r := &Reader{dec: msgpack.NewDecoder(bufio.NewReader(in))}

	if err := r.dec.Decode(&r.header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if r.header.Format != FormatName {
		return nil, fmt.Errorf("%w: format %q", ErrBadHeader, r.header.Format)
	}
	if r.header.Version < 1 || r.header.Version > FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, r.header.Version)
	}
	return r, nil
}

// Header returns the file header
func (r *Reader) Header() Header {
	return r.header
}

// Branches returns the declared branch names
func (r *Reader) Branches() []string {
	return append([]string(nil), r.header.Branches...)
}

// Next decodes the next event into event. It returns io.EOF after the last event.
func (r *Reader) Next(event *model.Event) error {
	*event = model.Event{}
	if err := r.dec.Decode(event); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read event %d: %w", r.read, err)
	}
	r.read++
	return nil
}

// Read returns the number of events decoded so far
func (r *Reader) Read() int64 {
	return r.read
}

// Close closes the underlying file if the reader owns it
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
