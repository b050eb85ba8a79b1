package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// OperationRecorder receives the outcome of every file store call.
type OperationRecorder interface {
	RecordStorageOperation(op, backend string, d time.Duration, err error)
}

// SizeRecorder is implemented by recorders that also track upload sizes.
type SizeRecorder interface {
	RecordUploadSize(backend string, n int64)
}

// Instrumented wraps a FileStore and reports each call to a recorder.
type Instrumented struct {
	FileStore
	backend  string
	recorder OperationRecorder
	now      func() time.Time
}

// Instrument wraps fs so each operation is reported to recorder under the
// backend label.
func Instrument(fs FileStore, backend string, recorder OperationRecorder) *Instrumented {
	return &Instrumented{FileStore: fs, backend: backend, recorder: recorder, now: time.Now}
}

func (s *Instrumented) record(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.recorder.RecordStorageOperation(op, s.backend, s.now().Sub(start), err)
}

// Save implements FileStore.
func (s *Instrumented) Save(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	start := s.now()
	cr := &countingReader{r: r}
	ref, err := s.FileStore.Save(ctx, cr, suggestedName)
	s.record("save", start, err)
	if sr, ok := s.recorder.(SizeRecorder); ok && err == nil {
		sr.RecordUploadSize(s.backend, cr.n)
	}
	return ref, err
}

// Open implements FileStore.
func (s *Instrumented) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	start := s.now()
	rc, err := s.FileStore.Open(ctx, ref)
	s.record("open", start, err)
	return rc, err
}

// Delete implements FileStore.
func (s *Instrumented) Delete(ctx context.Context, ref string) error {
	start := s.now()
	err := s.FileStore.Delete(ctx, ref)
	s.record("delete", start, err)
	return err
}

// Stat implements FileStore.
func (s *Instrumented) Stat(ctx context.Context, ref string) (int64, error) {
	start := s.now()
	size, err := s.FileStore.Stat(ctx, ref)
	s.record("stat", start, err)
	return size, err
}

// HealthCheck forwards to the wrapped store when it supports health checks.
func (s *Instrumented) HealthCheck(ctx context.Context) error {
	if hc, ok := s.FileStore.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
