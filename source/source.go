// Package source abstracts where container bytes come from: local files,
// arbitrary readers, or caller-supplied file-I/O replacement capabilities.
// The demuxer reads a Source sequentially and never seeks.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Source is an open container byte stream. Close must be safe to call once
// the demuxer has finished with the stream, including mid-read from another
// goroutine to unblock a pending Read during shutdown.
type Source interface {
	io.Reader
	io.Closer
}

// Sizer is implemented by sources whose total length is known up front.
type Sizer interface {
	Size() int64
}

// fileSource reads a local file.
type fileSource struct {
	f *os.File
}

// OpenFile opens a local file as a Source.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	return &fileSource{f: f}, nil
}

func (s *fileSource) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s *fileSource) Close() error               { return s.f.Close() }

// Size returns the file length, or -1 if it cannot be determined.
func (s *fileSource) Size() int64 {
	info, err := s.f.Stat()
	if err != nil {
		return -1
	}
	return info.Size()
}

// readerSource wraps an arbitrary reader, closing it on Close when it
// implements io.Closer.
type readerSource struct {
	r io.Reader
}

// FromReader wraps r as a Source.
func FromReader(r io.Reader) Source {
	return &readerSource{r: r}
}

func (s *readerSource) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *readerSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Replacement is the caller-supplied file-I/O capability: the engine routes
// all source access through these callbacks instead of the local filesystem.
// Open, ReadOffset, and Size are required for the capability to be usable;
// Close is optional.
type Replacement struct {
	Open       func(uri string) error
	Close      func() error
	ReadOffset func(p []byte, offset int64) (int, error)
	Size       func() int64
}

// Valid reports whether the capability carries the callbacks the engine
// needs to read a source through it.
func (r Replacement) Valid() bool {
	return r.Open != nil && r.ReadOffset != nil && r.Size != nil
}

// replacementSource adapts the offset-based Replacement callbacks into the
// sequential Source the demuxer expects.
type replacementSource struct {
	rep    Replacement
	offset int64
	size   int64
}

// OpenReplacement opens uri through the caller's file-I/O capability.
func OpenReplacement(rep Replacement, uri string) (Source, error) {
	if !rep.Valid() {
		return nil, errors.New("file replacement capability is incomplete")
	}
	if err := rep.Open(uri); err != nil {
		return nil, fmt.Errorf("replacement open %q: %w", uri, err)
	}
	return &replacementSource{rep: rep, size: rep.Size()}, nil
}

func (s *replacementSource) Read(p []byte) (int, error) {
	if s.size >= 0 && s.offset >= s.size {
		return 0, io.EOF
	}
	n, err := s.rep.ReadOffset(p, s.offset)
	s.offset += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *replacementSource) Close() error {
	if s.rep.Close != nil {
		return s.rep.Close()
	}
	return nil
}

func (s *replacementSource) Size() int64 { return s.size }
