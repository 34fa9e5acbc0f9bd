package media

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// DecodeBytes fully decodes an audio file held in memory into a buffer.
// The container is sniffed from the leading bytes; MP3, WAV and FLAC are
// supported. Empty or undecodable input returns an error without
// allocating a buffer.
func DecodeBytes(data []byte) (*beep.Buffer, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, fmt.Errorf("empty audio data")
	}

	streamer, format, err := decode(data)
	if err != nil {
		return nil, beep.Format{}, err
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	if buffer.Len() == 0 {
		return nil, beep.Format{}, fmt.Errorf("decoded audio is empty")
	}
	return buffer, format, nil
}

func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch sniff(data) {
	case "wav":
		return wav.Decode(bytes.NewReader(data))
	case "flac":
		return flac.Decode(bytes.NewReader(data))
	case "mp3":
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, beep.Format{}, fmt.Errorf("unrecognized audio container")
	}
}

// sniff identifies the container from magic bytes. MP3 is matched last
// and loosely (ID3 tag or frame sync) since it has no fixed magic.
func sniff(data []byte) string {
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return "wav"
	}
	if len(data) >= 4 && bytes.Equal(data[:4], []byte("fLaC")) {
		return "flac"
	}
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return "mp3"
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return "mp3"
	}
	return ""
}
