// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package termodat

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ErrorSink records failed exchanges. Sessions report every transport and
// protocol failure to their sink before returning it.
type ErrorSink interface {
	Record(op string, err error)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Record(string, error) {}

// FileSink appends one timestamped text line per error.
type FileSink struct {
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
}

// OpenFileSink opens path for appending, creating it if needed.
func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	sink := NewFileSink(f)
	sink.closer = f
	return sink, nil
}

// NewFileSink writes error lines to w.
func NewFileSink(w io.Writer) *FileSink {
	return &FileSink{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

func (s *FileSink) Record(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.LogAttrs(context.Background(), slog.LevelError, err.Error(), slog.String("op", op))
}

// Close closes the file opened by OpenFileSink.
func (s *FileSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
