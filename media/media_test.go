package media

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeWAV(sampleRate, frames int) []byte {
	dataSize := frames * 4
	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 2)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*4))
	binary.LittleEndian.PutUint16(buf[32:34], 4)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		frames  int
		wantErr bool
	}{
		{
			name:   "valid wav",
			data:   makeWAV(8000, 8000),
			frames: 8000,
		},
		{
			name:    "empty input",
			data:    nil,
			wantErr: true,
		},
		{
			name:    "unrecognized container",
			data:    []byte("this is not audio data at all"),
			wantErr: true,
		},
		{
			name:    "truncated wav header",
			data:    []byte("RIFF"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer, format, err := DecodeBytes(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeBytes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if buffer.Len() != tt.frames {
				t.Errorf("buffer length = %d frames, want %d", buffer.Len(), tt.frames)
			}
			if format.SampleRate != 8000 {
				t.Errorf("sample rate = %d, want 8000", format.SampleRate)
			}
		})
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"wav", makeWAV(8000, 10), "wav"},
		{"flac magic", []byte("fLaC...."), "flac"},
		{"mp3 id3", []byte("ID3....."), "mp3"},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "mp3"},
		{"unknown", []byte("OggS...."), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniff(tt.data); got != tt.want {
				t.Errorf("sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPCMStreamerConvertsAndTracksPosition(t *testing.T) {
	// Two frames: full-scale left, then full-scale right.
	pcm := []byte{
		0xFF, 0x7F, 0x00, 0x00, // L=32767 R=0
		0x00, 0x00, 0x01, 0x80, // L=0 R=-32767
	}
	played := false
	s := newPCMStreamer(bytes.NewReader(pcm), 100)
	s.onPlaying = func() { played = true }

	buf := make([][2]float64, 4)
	n, ok := s.Stream(buf)
	if n != 2 {
		t.Fatalf("Stream() n = %d, want 2", n)
	}
	if !ok {
		t.Fatal("Stream() ok = false on first read")
	}
	if buf[0][0] != 1.0 || buf[0][1] != 0.0 {
		t.Errorf("frame 0 = %v, want [1 0]", buf[0])
	}
	if buf[1][0] != 0.0 || buf[1][1] != -1.0 {
		t.Errorf("frame 1 = %v, want [0 -1]", buf[1])
	}
	if !played {
		t.Error("onPlaying did not fire")
	}

	// 2 frames at 100Hz is 20ms.
	if got := s.position(); got != 20*time.Millisecond {
		t.Errorf("position() = %v, want 20ms", got)
	}

	if n, ok := s.Stream(buf); n != 0 || ok {
		t.Errorf("Stream() after EOF = %d, %v, want 0, false", n, ok)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after clean EOF", s.Err())
	}
}

func TestPCMStreamerSetSourceRebases(t *testing.T) {
	s := newPCMStreamer(bytes.NewReader(make([]byte, 400)), 100)
	buf := make([][2]float64, 50)
	s.Stream(buf)

	s.setSource(bytes.NewReader(make([]byte, 400)), 3*time.Second)
	if got := s.position(); got != 3*time.Second {
		t.Errorf("position() after setSource = %v, want 3s", got)
	}
	s.Stream(buf[:10])
	if got := s.position(); got != 3*time.Second+100*time.Millisecond {
		t.Errorf("position() = %v, want 3.1s", got)
	}
}

func TestElementReportsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewElement(srv.Client(), srv.URL+"/track", 4)
	defer e.Close()

	if err := waitForError(t, e); err == nil {
		t.Fatal("expected an error event")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want mention of 404", err)
	}
}

func TestElementReportsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an mp3 stream"))
	}))
	defer srv.Close()

	e := NewElement(srv.Client(), srv.URL+"/track", 4)
	defer e.Close()

	if err := waitForError(t, e); err == nil {
		t.Fatal("expected an error event")
	}
}

func TestElementUnreachableHost(t *testing.T) {
	e := NewElement(nil, "http://127.0.0.1:1/track", 4)
	defer e.Close()

	if err := waitForError(t, e); err == nil {
		t.Fatal("expected an error event")
	}
}

// waitForError consumes events until an error event or metadata arrives.
func waitForError(t *testing.T, e *Element) error {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			switch ev.Kind {
			case EventError:
				return ev.Err
			case EventMetadata:
				return nil
			}
		case <-deadline:
			t.Fatal("timed out waiting for a terminal event")
		}
	}
}

func TestElementCloseIsIdempotentAndSignalsDone(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked // hold the connection open
	}))
	defer srv.Close()
	defer close(blocked)

	e := NewElement(srv.Client(), srv.URL+"/track", 4)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed after Close()")
	}

	if e.Streamer() != nil {
		t.Error("Streamer() should stay nil for a closed, never-ready element")
	}
}

func TestHeaderDuration(t *testing.T) {
	e := &Element{log: discardLogger()}
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"180", 180 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"", 0},
		{"soon", 0},
		{"-4", 0},
	}
	for _, tt := range tests {
		resp := &http.Response{Header: http.Header{}}
		if tt.value != "" {
			resp.Header.Set(DurationHeader, tt.value)
		}
		if got := e.headerDuration(resp); got != tt.want {
			t.Errorf("headerDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestElementSeekRequiresKnownLength(t *testing.T) {
	e := &Element{
		log:    discardLogger(),
		pcm:    newPCMStreamer(bytes.NewReader(nil), 44100),
		length: -1,
	}
	if err := e.Seek(10 * time.Second); err == nil {
		t.Error("Seek() on unknown-length stream should fail")
	}
}

var _ beep.Streamer = (*pcmStreamer)(nil)
