// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// OpenFile maps the archive at path into memory and opens it.
// The returned closer unmaps the file.
func OpenFile(path string) (*Archive, io.Closer, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, err
	}
	archive, err := Open(r)
	if err != nil {
		r.Close()
		return nil, nil, errors.Wrap(err, path)
	}
	return archive, r, nil
}

// Open opens the kar archive from r. It checks that r actually holds an
// archive and returns ErrFileFormat when it does not.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if num, err := r.ReadAt(prefix, 0); num < len(prefix) {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToInt64(prefix[MagicLength:])
	if err != nil || headerSize <= 0 || headerSize > headerLimit(r, int64(len(prefix))) {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, int64(len(prefix))); int64(num) < headerSize {
		if err != nil && err != io.EOF {
			return nil, err
		}
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}

	return &Archive{
		reader:     r,
		header:     header,
		dataOffset: int64(len(prefix)) + headerSize,
	}, nil
}

// maxHeaderSize bounds the header of an archive of unknown size.
const maxHeaderSize = 16 << 20

// headerLimit is the largest header r can hold after offset bytes.
func headerLimit(r io.ReaderAt, offset int64) int64 {
	switch sized := r.(type) {
	case interface{ Size() int64 }:
		return sized.Size() - offset
	case interface{ Len() int }:
		return int64(sized.Len()) - offset
	}
	return maxHeaderSize
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately.
type Archive struct {
	reader     io.ReaderAt
	header     Header
	dataOffset int64
}

// Header returns the archive header with its index.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the files in the archive in their stored order.
func (a *Archive) Names() []string {
	names := make([]string, len(a.header.Index))
	for i, e := range a.header.Index {
		names[i] = e.Name
	}
	return names
}

// Open returns a Reader of the decompressed contents of name.
func (a *Archive) Open(name string) (io.Reader, error) {
	e, ok := a.header.entry(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.dataOffset+e.Offset, e.CompressedSize)
	return io.LimitReader(lz4.NewReader(section), e.Size), nil
}

// ReadAll returns the entire contents of a file with a given name.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", name)
	}
	e, _ := a.header.entry(name)
	if int64(len(data)) != e.Size {
		return nil, errors.Wrapf(ErrFileFormat, "%s: read %d of %d bytes", name, len(data), e.Size)
	}
	return data, nil
}

// Load implements gfx.Loader.
func (a *Archive) Load(name string) ([]byte, error) {
	return a.ReadAll(name)
}
