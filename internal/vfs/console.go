// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"bufio"
	"errors"
	"io"
)

// Console is the File variant backing fds 0/1/2 at process creation:
// line-buffered stdin reads, unbuffered stdout/stderr writes. The trap
// vector and console formatting that actually move bytes to a UART or
// terminal are out of scope here; Console only needs to satisfy the
// File contract over whatever io.Reader/io.Writer it's given.
type Console struct {
	r        *bufio.Reader
	w        io.Writer
	readable bool
	writable bool
}

// NewConsoleIn wraps r as a read-only console file (fd 0).
func NewConsoleIn(r io.Reader) *Console {
	return &Console{r: bufio.NewReader(r), readable: true}
}

// NewConsoleOut wraps w as a write-only console file (fd 1 or 2).
func NewConsoleOut(w io.Writer) *Console {
	return &Console{w: w, writable: true}
}

func (c *Console) Readable() bool { return c.readable }
func (c *Console) Writable() bool { return c.writable }
func (c *Console) IsDir() bool    { return false }

func (c *Console) Fstat() (mode uint32, size uint64, ok bool) { return 0, 0, false }

func (c *Console) Read(buf []byte) (int, error) {
	if !c.readable {
		return 0, errNotReadable
	}
	n, err := c.r.Read(buf)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (c *Console) ReadAll() ([]byte, error) {
	if !c.readable {
		return nil, errNotReadable
	}
	return io.ReadAll(c.r)
}

func (c *Console) Write(buf []byte) (int, error) {
	if !c.writable {
		return 0, errNotWritable
	}
	return c.w.Write(buf)
}

// Close is a no-op: the console wraps the host's stdin/stdout/stderr,
// which outlive any one process's fd table.
func (c *Console) Close() error { return nil }

var errNotWritable = errors.New("vfs: file not writable")
