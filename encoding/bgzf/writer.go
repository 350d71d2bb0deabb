// Package bgzf writes the .bgzf (block gzipped) file format: complete gzip
// blocks, each carrying at most 64KB of payload, concatenated together and
// closed with a fixed 28-byte terminator block.  The payload of the file is
// the in-order concatenation of the blocks' uncompressed contents, so any
// gzip reader can decompress it, while block-aware readers can seek to a
// (block, intra-block) "virtual offset".  Writer exposes those virtual
// offsets through VOffset, which is what tabix-style index construction
// needs.
//
// See the SAM/BAM specification for the format details:
// https://samtools.github.io/hts-specs/SAMv1.pdf
package bgzf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/grailbio/base/compress/libdeflate"
	"v.io/x/lib/vlog"
)

const (
	// DefaultUncompressedBlockSize is the payload size of one block, the
	// same value sambamba and biogo use.
	DefaultUncompressedBlockSize = 0x0ff00

	// maxCompressedBlockSize bounds the compressed size of one block; the
	// BSIZE extra subfield stores compressed size - 1 in 16 bits.
	maxCompressedBlockSize = 0x10000
)

var (
	// bgzfExtra is the BC extra subfield (ids 66, 67, payload length 2)
	// every block header must carry; the last two bytes are patched with
	// BSIZE after compression.
	bgzfExtra       = [...]byte{66, 67, 2, 0, 0, 0}
	bgzfExtraPrefix = [...]byte{66, 67, 2, 0}

	// terminator is the fixed EOF block required at the end of a valid
	// .bgzf file.
	terminator = []byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00, 0x42, 0x43,
		0x02, 0x00, 0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
)

// Writer compresses its input into .bgzf blocks.  Not thread safe.
type Writer struct {
	w         io.Writer
	level     int
	blockSize int
	gz        *libdeflate.Writer
	// pending holds uncompressed bytes of the block being filled; block
	// holds the compressed form of the block being flushed.
	pending bytes.Buffer
	block   bytes.Buffer
	// coffset is the file position where the next compressed block starts.
	coffset uint64
}

// NewWriter returns a .bgzf writer with the given gzip compression level and
// the default block size.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	return NewWriterParams(w, level, DefaultUncompressedBlockSize)
}

// NewWriterParams is NewWriter with an explicit uncompressed block size.
// Sizes other than the default are mainly useful in tests.
func NewWriterParams(w io.Writer, level, uncompressedBlockSize int) (*Writer, error) {
	if uncompressedBlockSize <= 0 || uncompressedBlockSize > DefaultUncompressedBlockSize+0x100 {
		return nil, fmt.Errorf("bgzf: invalid block size %d", uncompressedBlockSize)
	}
	return &Writer{w: w, level: level, blockSize: uncompressedBlockSize}, nil
}

// Write appends buf to the .bgzf payload, flushing completed blocks as it
// goes.
func (w *Writer) Write(buf []byte) (int, error) {
	for i := 0; i < len(buf); {
		// Fill the pending block in place instead of copying all of buf.
		end := len(buf)
		if limit := i + w.blockSize - w.pending.Len(); limit < end {
			end = limit
		}
		n, _ := w.pending.Write(buf[i:end])
		i += n
		if err := w.flushBlocks(false); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// Close flushes the final partial block and appends the .bgzf terminator.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.flushBlocks(true); err != nil {
		return err
	}
	_, err := w.w.Write(terminator)
	return err
}

// VOffset returns the virtual offset of the next byte to be written, i.e.
// the starting file position of the current block shifted left 16 bits, ORed
// with the byte's offset inside the block's uncompressed payload.
func (w *Writer) VOffset() uint64 {
	return w.coffset<<16 | uint64(w.pending.Len())
}

// flushBlocks compresses and writes out full pending blocks, plus the final
// partial block when remainder is set.
func (w *Writer) flushBlocks(remainder bool) error {
	for w.pending.Len() >= w.blockSize || (remainder && w.pending.Len() > 0) {
		var err error
		if w.gz == nil {
			if w.gz, err = libdeflate.NewWriterLevel(&w.block, w.level); err != nil {
				return err
			}
		} else {
			w.gz.Reset(&w.block)
		}
		w.gz.Header.Extra = append([]byte(nil), bgzfExtra[:]...)
		w.gz.Header.OS = 0xff // Unknown OS value

		if _, err = w.gz.Write(w.pending.Next(w.blockSize)); err != nil {
			return err
		}
		if err = w.gz.Close(); err != nil {
			return err
		}

		// Patch BSIZE (compressed size - 1) into the BC extra subfield.
		const extraOffset = 12 // position of the Extra field in the gzip header
		b := w.block.Bytes()
		bsize := w.block.Len() - 1
		if bsize >= maxCompressedBlockSize {
			return fmt.Errorf("bgzf: compressed block too big: %d >= %d", bsize, maxCompressedBlockSize)
		}
		if w.block.Len() < extraOffset+len(bgzfExtra) ||
			!bytes.Equal(b[extraOffset:extraOffset+len(bgzfExtraPrefix)], bgzfExtraPrefix[:]) {
			vlog.Fatalf("bgzf: gzip header is missing the BC extra subfield")
		}
		b[extraOffset+4] = byte(bsize)
		b[extraOffset+5] = byte(bsize >> 8)

		sz := w.block.Len()
		if _, err = w.block.WriteTo(w.w); err != nil {
			return err
		}
		w.coffset += uint64(sz)
	}
	return nil
}
