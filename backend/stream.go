package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mwantia/folders/data"
)

// CopyBufferSize is the chunk handed from source to sink in one step.
const CopyBufferSize = 32 * 1024

// stream wraps a native read handle so that a cancelled context or an
// explicit Close releases it exactly once.
type stream struct {
	once    sync.Once
	ctx     context.Context
	rc      io.ReadCloser
	release []func()
	stop    func() bool
	closed  atomic.Bool
	err     error
}

// NewCatResult wraps a native stream into the cat contract. release hooks
// run once after the stream is closed, which is how per-call connections
// are returned when the consumer is done or goes away.
func NewCatResult(ctx context.Context, rc io.ReadCloser, size int64, name string, release ...func()) *data.CatResult {
	s := &stream{
		ctx:     ctx,
		rc:      rc,
		release: release,
	}
	s.stop = context.AfterFunc(ctx, func() {
		s.Close()
	})

	return &data.CatResult{
		Stream: s,
		Size:   size,
		Name:   name,
	}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		if err := s.ctx.Err(); err != nil {
			return 0, err
		}
		return 0, data.ErrClosed
	}

	n, err := s.rc.Read(p)
	if err != nil && s.closed.Load() {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
	}
	return n, err
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.stop()
		s.err = s.rc.Close()
		for _, release := range s.release {
			release()
		}
	})
	return s.err
}

// Copy moves src into dst chunk by chunk. A chunk is only read after the
// previous one was accepted by dst, so a slow sink pauses the source.
func Copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, CopyBufferSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}

		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

var errSinkFinished = errors.New("sink finished before producer")

// Pipe connects a producer that pushes bytes into a writer with a sink that
// pulls from a reader. The hand-off is synchronous: produce blocks until the
// sink has consumed the previous write, so memory use stays at one chunk no
// matter how large the stream is. Whichever side fails first aborts the other.
func Pipe(ctx context.Context, produce func(w io.Writer) error, sink func(r io.Reader) (data.WriteResult, error)) (data.WriteResult, error) {
	pr, pw := io.Pipe()
	stop := context.AfterFunc(ctx, func() {
		pr.CloseWithError(ctx.Err())
	})
	defer stop()

	produced := make(chan error, 1)
	go func() {
		err := produce(pw)
		pw.CloseWithError(err)
		produced <- err
	}()

	result, err := sink(pr)
	if err != nil {
		pr.CloseWithError(err)
	} else {
		pr.CloseWithError(errSinkFinished)
	}

	if perr := <-produced; perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SizeOf reports the remaining length of well-known in-memory readers and
// regular files, -1 otherwise.
func SizeOf(r io.Reader) int64 {
	switch v := r.(type) {
	case *bytes.Reader:
		return int64(v.Len())
	case *bytes.Buffer:
		return int64(v.Len())
	case *strings.Reader:
		return int64(v.Len())
	case *os.File:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return -1
		}
		offset, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return -1
		}
		return info.Size() - offset
	}
	return -1
}

// CountingReader reports every chunk read to fn.
type CountingReader struct {
	io.Reader
	fn func(n int64)
}

func NewCountingReader(r io.Reader, fn func(n int64)) *CountingReader {
	return &CountingReader{Reader: r, fn: fn}
}

func (cr *CountingReader) Read(p []byte) (int, error) {
	n, err := cr.Reader.Read(p)
	if n > 0 {
		cr.fn(int64(n))
	}
	return n, err
}

// countingReadCloser keeps Close reachable through the counter.
type countingReadCloser struct {
	*CountingReader
	io.Closer
}

// CountReadCloser wraps rc so every chunk read is reported to fn.
func CountReadCloser(rc io.ReadCloser, fn func(n int64)) io.ReadCloser {
	return countingReadCloser{
		CountingReader: NewCountingReader(rc, fn),
		Closer:         rc,
	}
}

// LimitedBuffer reads all of r, failing once more than limit bytes arrive.
// It is meant for backends whose native API only accepts complete values.
func LimitedBuffer(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	buf, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > limit {
		return nil, data.ErrTooLarge
	}
	return buf, nil
}
