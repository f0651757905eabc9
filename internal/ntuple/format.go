// Package ntuple implements the flat event file format read by the reader plugin.
//
// A file is a msgpack stream: one Header value followed by any number of model.Event values.
package ntuple

import "errors"

const (
	// FormatName identifies ntuple files in the header
	FormatName = "mensura-ntuple"
	// FormatVersion is the version written by this package
	FormatVersion = 1
	// Extension is the conventional file name extension
	Extension = ".mpk"
)

var (
	// ErrBadHeader is returned when a stream does not start with a valid header
	ErrBadHeader = errors.New("not a mensura ntuple")
	// ErrUnknownBranch is returned when an event carries a value for an undeclared branch
	ErrUnknownBranch = errors.New("unknown branch")
	// ErrChecksumMismatch is returned when a file does not match its recorded checksum
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Header is the first value of every ntuple file
type Header struct {
	Format   string            `msgpack:"format"`
	Version  int               `msgpack:"version"`
	Branches []string          `msgpack:"branches"`
	Metadata map[string]string `msgpack:"metadata,omitempty"`
}
