package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteFrame(&buf, tt.payload))

			got, err := ReadFrame(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxFrameSize+1)
	err := WriteFrame(&buf, oversized)
	assert.Error(t, err)
}

func TestReadFrameShortReadIsFramingError(t *testing.T) {
	buf := bytes.NewReader([]byte{0x05, 0x00}) // length prefix incomplete
	_, err := ReadFrame(buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMultipleFramesSequentially(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("first")))
	require.NoError(t, WriteFrame(&buf, []byte("second")))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))
}
