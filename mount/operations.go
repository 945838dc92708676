package mount

import (
	"context"
	"io"
	"time"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// guard checks the descriptor and waits for the rate limiter. It returns the
// canonical absolute path the backend receives.
func (m *Mount) guard(ctx context.Context, op backend.Capability, p string) (string, error) {
	if m.Options.ReadOnly && isMutating(op) {
		return "", data.NewError(data.ErrReadOnly, string(op), p, nil).
			WithMessage("mount '%s' is read-only", m.Path)
	}
	if err := m.caps.Require(op, m.Backend.Name()); err != nil {
		return "", err
	}

	rel, err := data.CleanPath(p)
	if err != nil {
		return "", err
	}

	if m.Options.Limiter != nil {
		if err := m.Options.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return data.JoinPath(rel), nil
}

func isMutating(op backend.Capability) bool {
	switch op {
	case backend.CapabilityWrite, backend.CapabilityUnlink, backend.CapabilityMkdir, backend.CapabilityRmdir:
		return true
	}
	return false
}

// observe reports one finished backend call.
func (m *Mount) observe(op backend.Capability, p string, start time.Time, err error) {
	d := time.Since(start)
	m.Options.Metrics.ObserveOperation(m.Backend.Name(), op, err, d)
	if err != nil {
		m.Options.Logger.Debug("%s: '%s' failed after %s: %v", op, p, d, err)
		return
	}
	m.Options.Logger.Debug("%s: '%s' completed in %s", op, p, d)
}

// unimplemented reports a descriptor that advertises an operation the
// backend does not implement.
func (m *Mount) unimplemented(op backend.Capability) error {
	return data.Unsupported(string(op), m.Backend.Name())
}

func (m *Mount) Ls(ctx context.Context, p string) ([]*data.Entry, error) {
	abs, err := m.guard(ctx, backend.CapabilityLs, p)
	if err != nil {
		return nil, err
	}
	lister, ok := m.Backend.(backend.Lister)
	if !ok {
		return nil, m.unimplemented(backend.CapabilityLs)
	}

	start := time.Now()
	entries, err := lister.Ls(ctx, abs)
	m.observe(backend.CapabilityLs, abs, start, err)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Mount) Cat(ctx context.Context, p string) (*data.CatResult, error) {
	abs, err := m.guard(ctx, backend.CapabilityCat, p)
	if err != nil {
		return nil, err
	}
	reader, ok := m.Backend.(backend.Reader)
	if !ok {
		return nil, m.unimplemented(backend.CapabilityCat)
	}

	start := time.Now()
	result, err := reader.Cat(ctx, abs)
	m.observe(backend.CapabilityCat, abs, start, err)
	if err != nil {
		return nil, err
	}
	return m.openStream(ctx, abs, result), nil
}

func (m *Mount) RangeCat(ctx context.Context, p string, rng data.Range) (*data.CatResult, error) {
	if rng.Offset < 0 || rng.Length < 0 {
		return nil, data.NewError(data.ErrInvalidPath, string(backend.CapabilityRangeCat), p, nil).
			WithMessage("invalid range %d+%d", rng.Offset, rng.Length)
	}

	abs, err := m.guard(ctx, backend.CapabilityRangeCat, p)
	if err != nil {
		return nil, err
	}
	reader, ok := m.Backend.(backend.RangeReader)
	if !ok {
		return nil, m.unimplemented(backend.CapabilityRangeCat)
	}

	start := time.Now()
	result, err := reader.RangeCat(ctx, abs, rng)
	m.observe(backend.CapabilityRangeCat, abs, start, err)
	if err != nil {
		return nil, err
	}
	return m.openStream(ctx, abs, result), nil
}

// Write streams r to p. size is -1 when unknown, in which case the size of
// well-known readers is detected.
func (m *Mount) Write(ctx context.Context, p string, r io.Reader, size int64) (data.WriteResult, error) {
	abs, err := m.guard(ctx, backend.CapabilityWrite, p)
	if err != nil {
		return nil, err
	}
	if abs == "/" {
		return nil, data.IsDirectory(string(backend.CapabilityWrite), abs)
	}
	writer, ok := m.Backend.(backend.Writer)
	if !ok {
		return nil, m.unimplemented(backend.CapabilityWrite)
	}

	if size < 0 {
		size = backend.SizeOf(r)
	}
	if limit := m.caps.MaxObjectSize; limit > 0 && size > limit {
		return nil, data.NewError(data.ErrTooLarge, string(backend.CapabilityWrite), abs, nil).
			WithMessage("object of %d bytes exceeds the limit of %d bytes", size, limit)
	}

	kind := m.Backend.Name()
	counted := backend.NewCountingReader(r, func(n int64) {
		m.Options.Metrics.AddBytesWritten(kind, n)
	})

	start := time.Now()
	result, err := writer.Write(ctx, abs, counted, size)
	m.observe(backend.CapabilityWrite, abs, start, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WriteFunc hands produce a writer whose bytes are streamed to p.
func (m *Mount) WriteFunc(ctx context.Context, p string, produce func(w io.Writer) error) (data.WriteResult, error) {
	return backend.Pipe(ctx, produce, func(r io.Reader) (data.WriteResult, error) {
		return m.Write(ctx, p, r, -1)
	})
}

func (m *Mount) Unlink(ctx context.Context, p string) error {
	abs, err := m.guard(ctx, backend.CapabilityUnlink, p)
	if err != nil {
		return err
	}
	unlinker, ok := m.Backend.(backend.Unlinker)
	if !ok {
		return m.unimplemented(backend.CapabilityUnlink)
	}

	start := time.Now()
	err = unlinker.Unlink(ctx, abs)
	m.observe(backend.CapabilityUnlink, abs, start, err)
	return err
}

func (m *Mount) Mkdir(ctx context.Context, p string) error {
	abs, err := m.guard(ctx, backend.CapabilityMkdir, p)
	if err != nil {
		return err
	}
	maker, ok := m.Backend.(backend.DirMaker)
	if !ok {
		return m.unimplemented(backend.CapabilityMkdir)
	}

	dir := data.WithTrailingSlash(abs)
	if err := backend.CheckDepth(backend.CapabilityMkdir, dir, m.caps.MinDepth); err != nil {
		return err
	}

	start := time.Now()
	err = maker.Mkdir(ctx, dir)
	m.observe(backend.CapabilityMkdir, dir, start, err)
	return err
}

func (m *Mount) Rmdir(ctx context.Context, p string) error {
	abs, err := m.guard(ctx, backend.CapabilityRmdir, p)
	if err != nil {
		return err
	}
	remover, ok := m.Backend.(backend.DirRemover)
	if !ok {
		return m.unimplemented(backend.CapabilityRmdir)
	}

	dir := data.WithTrailingSlash(abs)
	if err := backend.CheckDepth(backend.CapabilityRmdir, dir, m.caps.MinDepth); err != nil {
		return err
	}

	start := time.Now()
	err = remover.Rmdir(ctx, dir)
	m.observe(backend.CapabilityRmdir, dir, start, err)
	return err
}
