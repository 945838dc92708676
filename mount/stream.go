package mount

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

// stream keeps a cat result registered with its mount until it is closed
// or the context it was opened with ends.
type stream struct {
	io.ReadCloser
	once sync.Once
	mnt  *Mount
	info StreamInfo
	read atomic.Int64

	mu   sync.Mutex
	stop func() bool
}

func (m *Mount) openStream(ctx context.Context, p string, result *data.CatResult) *data.CatResult {
	s := &stream{
		mnt: m,
		info: StreamInfo{
			ID:       uuid.NewString(),
			Path:     p,
			OpenedAt: time.Now(),
		},
	}

	kind := m.Backend.Name()
	s.ReadCloser = backend.CountReadCloser(result.Stream, func(n int64) {
		s.read.Add(n)
		m.Options.Metrics.AddBytesRead(kind, n)
	})

	m.track(s)
	s.mu.Lock()
	s.stop = context.AfterFunc(ctx, func() {
		s.Close()
	})
	s.mu.Unlock()
	m.Options.Logger.Debug("Cat: opened stream '%s' for '%s'", s.info.ID, p)

	return &data.CatResult{
		Stream: s,
		Size:   result.Size,
		Name:   result.Name,
	}
}

// Close releases the backend stream and unregisters it. Only the first
// call reaches the backend.
func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		if s.stop != nil {
			s.stop()
		}
		s.mu.Unlock()
		err = s.ReadCloser.Close()
		s.mnt.untrack(s.info.ID)
		s.mnt.Options.Logger.With("stream", s.info.ID).Debug("Cat: closed stream for '%s' after %d bytes", s.info.Path, s.read.Load())
	})
	return err
}
