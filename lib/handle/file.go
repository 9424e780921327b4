package handle

import (
	"errors"

	"github.com/spf13/afero"
)

// ErrNoDescriptor is returned when reading an InputFile without an open File.
var ErrNoDescriptor = errors.New("input file has no open descriptor")

// InputFile describes a slice of a (possibly multi-member) file offered to,
// or re-acquired by, a backend.
type InputFile struct {
	// File is an open descriptor positioned anywhere; readers use Offset.
	// It is nil in registry records and set on files returned by Acquire.
	File   afero.File
	Name   string
	Offset int64
	Size   int64
	Handle Handle
}

// ReadContents reads the Size bytes starting at Offset.
func (f InputFile) ReadContents() ([]byte, error) {
	if f.File == nil {
		return nil, ErrNoDescriptor
	}
	buf := make([]byte, f.Size)
	if f.Size == 0 {
		return buf, nil
	}
	n, err := f.File.ReadAt(buf, f.Offset)
	if err != nil && int64(n) < f.Size {
		return nil, err
	}
	return buf, nil
}
