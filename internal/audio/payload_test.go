package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadIsImmutable(t *testing.T) {
	source := []byte{1, 2, 3}
	payload := NewPayload(source, EncodingMP3, 0)

	source[0] = 9
	require.Equal(t, []byte{1, 2, 3}, payload.Bytes())

	out := payload.Bytes()
	out[1] = 9
	require.Equal(t, []byte{1, 2, 3}, payload.Bytes())

	require.Equal(t, EncodingMP3, payload.Encoding())
	require.Equal(t, 3, payload.Len())
	require.False(t, payload.Empty())
	require.True(t, Payload{}.Empty())
}

func TestWriteWAVHeader(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, NewPayload(pcm, EncodingLinear16, 16000)))

	out := buf.Bytes()
	require.Len(t, out, 44+len(pcm))
	require.Equal(t, "RIFF", string(out[0:4]))
	require.Equal(t, "WAVE", string(out[8:12]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(out[28:32]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:44]))
	require.Equal(t, pcm, out[44:])
}

func TestWriteWAVRejectsCompressedAudio(t *testing.T) {
	err := WriteWAV(&bytes.Buffer{}, NewPayload([]byte{1}, EncodingMP3, 0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "LINEAR16")
}

func TestDumpWAVWritesUnderStateDir(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	path, err := DumpWAV(NewPayload([]byte{1, 0}, EncodingLinear16, 16000))
	require.NoError(t, err)
	require.Contains(t, path, state)
	require.FileExists(t, path)
}
