// Copyright 2022 the go-s3fs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package s3

import (
	"io"
	"sync"
	"unicode/utf8"
)

// Accounter receives transfer progress for uploads and downloads.
// Start is called once with the expected size (-1 when unknown), Account
// for every chunk moved and Done when the transfer ends.
type Accounter interface {
	Start(name string, size int64)
	Account(n int)
	Done(err error)
}

type nopAccounter struct{}

func (nopAccounter) Start(string, int64) {}
func (nopAccounter) Account(int)         {}
func (nopAccounter) Done(error)          {}

// accountReader counts the bytes read through it.
type accountReader struct {
	// Read and Close may race when the http transport cancels a request.
	mu     sync.Mutex
	in     io.Reader
	acc    Accounter
	bytes  int64
	closed bool
}

func newAccountReader(in io.Reader, acc Accounter) *accountReader {
	return &accountReader{in: in, acc: acc}
}

func (ar *accountReader) Read(p []byte) (n int, err error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.closed {
		return 0, io.ErrClosedPipe
	}
	n, err = ar.in.Read(p)
	ar.bytes += int64(n)
	if n > 0 {
		ar.acc.Account(n)
	}
	return n, err
}

// WriteTo keeps the accounting when io.Copy prefers WriterTo.
func (ar *accountReader) WriteTo(w io.Writer) (n int64, err error) {
	buf := make([]byte, 32*1024)
	for {
		nr, rerr := ar.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			n += int64(nw)
			if werr != nil {
				return n, werr
			}
			if nw != nr {
				return n, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
	}
}

// Bytes returns how much has been read so far.
func (ar *accountReader) Bytes() int64 {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.bytes
}

func (ar *accountReader) Close() error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.closed {
		return nil
	}
	ar.closed = true
	if c, ok := ar.in.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// accountWriterAt counts the bytes the downloader writes; parts arrive
// concurrently and out of order.
type accountWriterAt struct {
	mu    sync.Mutex
	w     io.WriterAt
	acc   Accounter
	bytes int64
}

func newAccountWriterAt(w io.WriterAt, acc Accounter) *accountWriterAt {
	return &accountWriterAt{w: w, acc: acc}
}

func (aw *accountWriterAt) WriteAt(p []byte, off int64) (n int, err error) {
	n, err = aw.w.WriteAt(p, off)
	aw.mu.Lock()
	aw.bytes += int64(n)
	aw.mu.Unlock()
	if n > 0 {
		aw.acc.Account(n)
	}
	return n, err
}

func (aw *accountWriterAt) Bytes() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.bytes
}

// shortenName shortens in to size runes long
// If size <= 0 then in is left untouched
func shortenName(in string, size int) string {
	if size <= 0 {
		return in
	}
	if utf8.RuneCountInString(in) <= size {
		return in
	}
	name := []rune(in)
	size-- // don't count ellipsis rune
	suffixLength := size / 2
	prefixLength := size - suffixLength
	suffixStart := len(name) - suffixLength
	name = append(append(name[:prefixLength], '…'), name[suffixStart:]...)
	return string(name)
}
