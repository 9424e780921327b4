package handle

import (
	"errors"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/status"
)

// ErrClosed is returned when registering into a closed registry.
var ErrClosed = errors.New("handle registry closed")

// Registry maps handles to claimed input files.
type Registry struct {
	fs     afero.Fs
	logger *zap.Logger

	entries  []entry
	freeList []uint32
	mu       sync.Mutex
	closed   bool
}

type entry struct {
	file     InputFile
	acquired afero.File
	gen      uint32
	valid    bool
}

// NewRegistry creates a registry that re-opens files through fs.
func NewRegistry(fs afero.Fs, logger *zap.Logger) *Registry {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		fs:       fs,
		logger:   logger,
		entries:  make([]entry, 0, 16),
		freeList: make([]uint32, 0, 4),
	}
}

// Register records file and returns a fresh handle for it. The descriptor in
// file is not retained.
func (r *Registry) Register(file InputFile) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Invalid, ErrClosed
	}

	file.File = nil

	if len(r.freeList) > 0 {
		idx := r.freeList[len(r.freeList)-1]
		r.freeList = r.freeList[:len(r.freeList)-1]
		e := &r.entries[idx]
		h := makeHandle(idx, e.gen)
		file.Handle = h
		e.file = file
		e.valid = true
		return h, nil
	}

	idx := uint32(len(r.entries))
	h := makeHandle(idx, 0)
	file.Handle = h
	r.entries = append(r.entries, entry{file: file, valid: true})
	return h, nil
}

// lookup returns the live entry for h. Callers hold r.mu.
func (r *Registry) lookup(h Handle) (*entry, bool) {
	if h == Invalid {
		return nil, false
	}
	idx := h.Index()
	if int(idx) >= len(r.entries) {
		return nil, false
	}
	e := &r.entries[idx]
	if !e.valid || e.gen != h.Generation() {
		return nil, false
	}
	return e, true
}

// Lookup returns the record for h without a descriptor.
func (r *Registry) Lookup(h Handle) (InputFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(h)
	if !ok {
		return InputFile{}, false
	}
	return e.file, true
}

// Valid reports whether h is live.
func (r *Registry) Valid(h Handle) bool {
	_, ok := r.Lookup(h)
	return ok
}

// Acquire re-opens the file behind h. The caller owns the returned
// descriptor until ReleaseDescriptor. Only one descriptor per handle may be
// outstanding.
func (r *Registry) Acquire(h Handle) (InputFile, status.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(h)
	if !ok {
		return InputFile{}, status.BadHandle
	}
	if e.acquired != nil {
		r.logger.Warn("descriptor already acquired",
			zap.Stringer("handle", h),
			zap.String("file", e.file.Name))
		return InputFile{}, status.Err
	}

	f, err := r.fs.Open(e.file.Name)
	if err != nil {
		r.logger.Error("failed to reopen input file",
			zap.Stringer("handle", h),
			zap.String("file", e.file.Name),
			zap.Error(err))
		return InputFile{}, status.Err
	}
	e.acquired = f

	out := e.file
	out.File = f
	return out, status.OK
}

// ReleaseDescriptor closes the descriptor obtained by Acquire. Releasing a
// handle with no outstanding descriptor is BadHandle.
func (r *Registry) ReleaseDescriptor(h Handle) status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(h)
	if !ok || e.acquired == nil {
		return status.BadHandle
	}

	f := e.acquired
	e.acquired = nil
	if err := f.Close(); err != nil {
		r.logger.Warn("closing released descriptor",
			zap.Stringer("handle", h),
			zap.Error(err))
		return status.Err
	}
	return status.OK
}

// Acquired reports whether h has an outstanding descriptor.
func (r *Registry) Acquired(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(h)
	return ok && e.acquired != nil
}

// Drop invalidates h. An outstanding descriptor is closed and logged as a leak.
func (r *Registry) Drop(h Handle) status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(h)
	if !ok {
		return status.BadHandle
	}
	r.closeLeaked(h, e)

	e.valid = false
	e.file = InputFile{}
	e.gen++
	r.freeList = append(r.freeList, h.Index())
	return status.OK
}

func (r *Registry) closeLeaked(h Handle, e *entry) {
	if e.acquired == nil {
		return
	}
	r.logger.Warn("descriptor leaked, closing",
		zap.Stringer("handle", h),
		zap.String("file", e.file.Name))
	_ = e.acquired.Close()
	e.acquired = nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Each calls fn for every live handle in slot order until fn returns false.
func (r *Registry) Each(fn func(Handle, InputFile) bool) {
	r.mu.Lock()
	live := make([]InputFile, 0, len(r.entries))
	for _, e := range r.entries {
		if e.valid {
			live = append(live, e.file)
		}
	}
	r.mu.Unlock()

	for _, f := range live {
		if !fn(f.Handle, f) {
			return
		}
	}
}

// Close closes outstanding descriptors and invalidates every handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for i := range r.entries {
		e := &r.entries[i]
		if e.valid {
			r.closeLeaked(makeHandle(uint32(i), e.gen), e)
			e.valid = false
			e.file = InputFile{}
		}
	}
	r.entries = nil
	r.freeList = nil
	return nil
}
