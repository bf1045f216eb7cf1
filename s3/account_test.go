package s3

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountReader(t *testing.T) {
	acc := &recordingAccounter{}
	ar := newAccountReader(strings.NewReader("hello, world"), acc)

	buf := make([]byte, 5)
	n, err := ar.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	var out bytes.Buffer
	m, err := io.Copy(&out, ar)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m)
	assert.Equal(t, ", world", out.String())

	assert.Equal(t, int64(12), ar.Bytes())
	assert.Equal(t, 12, acc.bytes)

	require.NoError(t, ar.Close())
	require.NoError(t, ar.Close())
	_, err = ar.Read(buf)
	assert.Equal(t, io.ErrClosedPipe, err)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestAccountReaderClosesUnderlying(t *testing.T) {
	in := &closeRecorder{Reader: strings.NewReader("x")}
	ar := newAccountReader(in, nopAccounter{})
	require.NoError(t, ar.Close())
	assert.True(t, in.closed)
}

func TestAccountWriterAt(t *testing.T) {
	acc := &recordingAccounter{}
	buf := manager.NewWriteAtBuffer(nil)
	aw := newAccountWriterAt(buf, acc)

	_, err := aw.WriteAt([]byte("world"), 6)
	require.NoError(t, err)
	_, err = aw.WriteAt([]byte("hello "), 0)
	require.NoError(t, err)

	assert.Equal(t, "hello world", string(buf.Bytes()))
	assert.Equal(t, int64(11), aw.Bytes())
	assert.Equal(t, 11, acc.bytes)
}

func TestShortenName(t *testing.T) {
	for _, test := range []struct {
		in   string
		size int
		want string
	}{
		{"", 0, ""},
		{"abcde", 10, "abcde"},
		{"abcde", 0, "abcde"},
		{"abcde", -1, "abcde"},
		{"abcde", 5, "abcde"},
		{"abcde", 4, "ab…e"},
		{"abcde", 3, "a…e"},
		{"s3://bucket/very/long/key.csv", 12, "s3://b…y.csv"},
		{"日本語のファイル", 5, "日本…イル"},
	} {
		got := shortenName(test.in, test.size)
		assert.Equal(t, test.want, got, "%q/%d", test.in, test.size)
	}
}
