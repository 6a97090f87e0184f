package port

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	bert "github.com/diodechain/erlport"
)

func TestWriteFrame(t *testing.T) {
	w := &countingWriter{}
	require.NoError(t, WriteFrame(w, []byte{131, 106}))
	require.Equal(t, []byte{0, 0, 0, 2, 131, 106}, w.Bytes())
	require.Equal(t, 1, w.writes)
}

func TestReadFrame(t *testing.T) {
	large := bytes.Repeat([]byte{7}, 1<<17)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{1, 2, 3}))
	require.NoError(t, WriteFrame(&buf, nil))
	require.NoError(t, WriteFrame(&buf, large))

	got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)

	got, err = ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = ReadFrame(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, large, got)

	_, err = ReadFrame(&buf, 0)
	require.Equal(t, io.EOF, err)
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		max     uint32
		wantErr error
	}{
		{name: "one header byte", input: []byte{0}, wantErr: bert.ErrTruncated},
		{name: "three header bytes", input: []byte{0, 0, 0}, wantErr: bert.ErrTruncated},
		{name: "short payload", input: []byte{0, 0, 0, 3, 1}, wantErr: bert.ErrTruncated},
		{name: "header only", input: []byte{0, 0, 0, 1}, wantErr: bert.ErrTruncated},
		{name: "short large payload", input: []byte{0x10, 0, 0, 0, 1, 2, 3}, wantErr: bert.ErrTruncated},
		{name: "over limit", input: []byte{0, 0, 1, 0}, max: 255, wantErr: ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input), tt.max)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConnFrames(t *testing.T) {
	var in, out bytes.Buffer
	require.NoError(t, WriteFrame(&in, []byte{9}))

	conn := NewConn(&in, &out)
	got, err := conn.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, []byte{9}, got)

	require.NoError(t, conn.WriteFrame(got))
	require.Equal(t, []byte{0, 0, 0, 1, 9}, out.Bytes())
}
