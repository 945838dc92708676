package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwantia/folders/data"
)

type trackingCloser struct {
	io.Reader
	closed atomic.Int32
}

func (tc *trackingCloser) Close() error {
	tc.closed.Add(1)
	return nil
}

func TestCatResult_CloseRunsReleaseOnce(t *testing.T) {
	native := &trackingCloser{Reader: strings.NewReader("file content")}
	released := 0

	result := NewCatResult(t.Context(), native, 12, "file1.txt", func() { released++ })
	if result.Size != 12 || result.Name != "file1.txt" {
		t.Fatalf("Unexpected cat result: %+v", result)
	}

	got, err := io.ReadAll(result.Stream)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "file content" {
		t.Errorf("Expected %q, got %q", "file content", got)
	}

	result.Stream.Close()
	result.Stream.Close()
	if native.closed.Load() != 1 || released != 1 {
		t.Errorf("Expected exactly one close and release, got %d/%d", native.closed.Load(), released)
	}

	// Single pass: a closed stream cannot be read again
	if _, err := result.Stream.Read(make([]byte, 1)); !errors.Is(err, data.ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}

func TestCatResult_CancelReleasesHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	native := &trackingCloser{Reader: strings.NewReader("abc")}
	released := make(chan struct{})

	result := NewCatResult(ctx, native, 3, "a.txt", func() { close(released) })
	cancel()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("Release hook not called after cancel")
	}

	if _, err := result.Stream.Read(make([]byte, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPipe_Backpressure(t *testing.T) {
	const (
		total     = 4 * 1024 * 1024
		chunkSize = 64 * 1024
		readSize  = 8 * 1024
	)

	var produced, consumed, maxLead atomic.Int64

	produce := func(w io.Writer) error {
		chunk := bytes.Repeat([]byte("x"), chunkSize)
		for produced.Load() < total {
			if lead := produced.Load() - consumed.Load(); lead > maxLead.Load() {
				maxLead.Store(lead)
			}
			n, err := w.Write(chunk)
			produced.Add(int64(n))
			if err != nil {
				return err
			}
		}
		return nil
	}

	sink := func(r io.Reader) (data.WriteResult, error) {
		buf := make([]byte, readSize)
		reads := 0
		for {
			n, err := r.Read(buf)
			consumed.Add(int64(n))
			reads++
			if reads%16 == 0 {
				time.Sleep(time.Millisecond)
			}
			if err == io.EOF {
				return data.WriteResult{"bytes": consumed.Load()}, nil
			}
			if err != nil {
				return nil, err
			}
		}
	}

	result, err := Pipe(t.Context(), produce, sink)
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	if result["bytes"] != int64(total) {
		t.Errorf("Expected %d bytes, got %v", total, result["bytes"])
	}
	if lead := maxLead.Load(); lead > 2*chunkSize {
		t.Errorf("Producer ran %d bytes ahead of the sink, expected at most %d", lead, 2*chunkSize)
	}
}

func TestPipe_SinkFailureAbortsProducer(t *testing.T) {
	sinkErr := errors.New("quota exceeded")

	_, err := Pipe(t.Context(), func(w io.Writer) error {
		for {
			if _, err := w.Write([]byte("data")); err != nil {
				return err
			}
		}
	}, func(r io.Reader) (data.WriteResult, error) {
		io.CopyN(io.Discard, r, 16)
		return nil, sinkErr
	})

	if !errors.Is(err, sinkErr) {
		t.Errorf("Expected sink error, got %v", err)
	}
}

func TestCopy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	n, err := Copy(ctx, io.Discard, strings.NewReader("abc"))
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("Expected cancelled copy, got n=%d err=%v", n, err)
	}

	var buf bytes.Buffer
	n, err = Copy(t.Context(), &buf, strings.NewReader("hello world"))
	if err != nil || n != 11 || buf.String() != "hello world" {
		t.Errorf("Unexpected copy result: n=%d err=%v buf=%q", n, err, buf.String())
	}
}

func TestSizeOfAndLimitedBuffer(t *testing.T) {
	if got := SizeOf(bytes.NewReader([]byte("abc"))); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
	if got := SizeOf(io.MultiReader(strings.NewReader("abc"))); got != -1 {
		t.Errorf("Expected -1 for unknown reader, got %d", got)
	}

	if _, err := LimitedBuffer(strings.NewReader("12345"), 4); !errors.Is(err, data.ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
	buf, err := LimitedBuffer(strings.NewReader("1234"), 4)
	if err != nil || string(buf) != "1234" {
		t.Errorf("Unexpected buffer %q (%v)", buf, err)
	}
}
