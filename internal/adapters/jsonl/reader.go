// Package jsonl provides a numbered streaming reader for the JSON-Lines
// conversation log files the ingestion layer and lazy query reader both
// consume. Numbering each line here, once, means every call site can
// report a skipped line's path and line number (§7's malformed/oversized
// line taxonomy) without keeping its own counter in sync with the reader.
package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrLineTooLong is returned when a JSONL line exceeds the configured max size.
var ErrLineTooLong = errors.New("jsonl line exceeds max size")

// Line represents a single JSONL line read from a stream. Data excludes
// trailing newline characters. Num is the line's 1-indexed position in the
// file, carried so a skipped line (malformed or too long) can be logged
// with its location. BytesRead includes any newline bytes consumed.
type Line struct {
	Data      []byte
	Num       int
	BytesRead int
	TooLong   bool
}

// Reader streams numbered JSONL lines from an io.Reader.
type Reader struct {
	br           *bufio.Reader
	maxLineBytes int
	lineNum      int
}

// NewReader creates a new JSONL streaming reader.
// maxLineBytes of 0 disables the line size limit.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	return &Reader{
		br:           bufio.NewReader(r),
		maxLineBytes: maxLineBytes,
	}
}

// Next reads the next JSONL line. It returns io.EOF when no more data remains.
// If the line exceeds maxLineBytes, TooLong is set and Data is nil; Num is
// still populated so the caller can log which line was dropped.
func (r *Reader) Next() (Line, error) {
	var (
		buf       []byte
		bytesRead int
		tooLong   bool
	)

	for {
		part, err := r.br.ReadSlice('\n')
		bytesRead += len(part)

		if err == bufio.ErrBufferFull {
			if !tooLong {
				if r.maxLineBytes > 0 && len(buf)+len(part) > r.maxLineBytes {
					tooLong = true
				} else {
					buf = append(buf, part...)
				}
			}
			continue
		}

		if err != nil {
			if err == io.EOF {
				if len(part) == 0 {
					return Line{}, io.EOF
				}
				if !tooLong {
					if r.maxLineBytes > 0 && len(buf)+len(part) > r.maxLineBytes {
						tooLong = true
					} else {
						buf = append(buf, part...)
					}
				}
				r.lineNum++
				if tooLong {
					return Line{Num: r.lineNum, BytesRead: bytesRead, TooLong: true}, nil
				}
				return Line{Data: trimLine(buf), Num: r.lineNum, BytesRead: bytesRead}, nil
			}
			return Line{}, err
		}

		if !tooLong {
			if r.maxLineBytes > 0 && len(buf)+len(part) > r.maxLineBytes {
				tooLong = true
			} else {
				buf = append(buf, part...)
			}
		}

		r.lineNum++
		if tooLong {
			return Line{Num: r.lineNum, BytesRead: bytesRead, TooLong: true}, nil
		}

		return Line{Data: trimLine(buf), Num: r.lineNum, BytesRead: bytesRead}, nil
	}
}

func trimLine(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	b = bytes.TrimSuffix(b, []byte{'\r'})
	return b
}
