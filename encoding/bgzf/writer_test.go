package bgzf

import (
	"bytes"
	"io/ioutil"
	"math/rand"
	"os"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	// Lengths straddle the block-size boundary.
	for _, length := range []int{0, 1, 100, 65279, 65280, 65281, 500000} {
		t.Logf("length: %d", length)
		input := make([]byte, length)
		n, err := rand.Read(input)
		require.Nil(t, err)
		assert.Equal(t, length, n)

		var buf bytes.Buffer
		w, err := NewWriter(&buf, 1)
		require.Nil(t, err)
		n, err = w.Write(input)
		assert.Nil(t, err)
		assert.Equal(t, length, n)
		assert.Nil(t, w.Close())

		// The output must be readable by a plain gzip reader and must
		// round-trip the payload.
		r, err := gzip.NewReader(&buf)
		require.Nil(t, err)
		actual, err := ioutil.ReadAll(r)
		require.Nil(t, err)
		assert.Equal(t, length, len(actual))
		assert.Equal(t, 0, bytes.Compare(input, actual))
	}
}

func TestTerminator(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1)
	require.Nil(t, err)
	_, err = w.Write([]byte("hello"))
	require.Nil(t, err)
	require.Nil(t, w.Close())
	out := buf.Bytes()
	require.True(t, len(out) >= len(terminator))
	assert.Equal(t, terminator, out[len(out)-len(terminator):])
}

func TestVOffset(t *testing.T) {
	// Set bgzf block size to 5 so single-byte writes can complete blocks.
	var buf bytes.Buffer
	w, err := NewWriterParams(&buf, 1, 5)
	require.Nil(t, err)

	// 4 bytes do not complete a block: voffset is (0, 4).
	_, err = w.Write([]byte("ABCD"))
	require.Nil(t, err)
	assert.Equal(t, uint64(4), w.VOffset())

	// One more byte completes the block: voffset is (non-zero, 0).
	_, err = w.Write([]byte("E"))
	require.Nil(t, err)
	voffset1 := w.VOffset()
	assert.Equal(t, uint64(0), voffset1&uint64(0xffff))
	assert.NotEqual(t, uint64(0), voffset1>>16)

	// One byte into the next block: same coffset, uoffset 1.
	_, err = w.Write([]byte("F"))
	require.Nil(t, err)
	voffset2 := w.VOffset()
	assert.Equal(t, uint64(1), voffset2&uint64(0xffff))
	assert.Equal(t, voffset1>>16, voffset2>>16)
}

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	defer shutdown()
	os.Exit(m.Run())
}
