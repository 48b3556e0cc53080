package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// wav builds a mono 16-bit PCM recording of the given length at 16 kHz.
func wav(d time.Duration) []byte {
	const rate, bytesPerSample = 16000, 2
	dataSize := int(d.Seconds()*rate) * bytesPerSample
	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], rate)
	binary.LittleEndian.PutUint32(buf[28:32], rate*bytesPerSample)
	binary.LittleEndian.PutUint16(buf[32:34], bytesPerSample)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantDuration time.Duration
		wantErr      error
	}{
		{name: "empty", data: nil, wantErr: ErrEmptyAudio},
		{name: "two seconds", data: wav(2 * time.Second), wantDuration: 2 * time.Second},
		{name: "lower bound inclusive", data: wav(500 * time.Millisecond), wantDuration: 500 * time.Millisecond},
		{name: "too short", data: wav(250 * time.Millisecond), wantDuration: 250 * time.Millisecond, wantErr: ErrTooShort},
		{name: "upper bound inclusive", data: wav(30 * time.Second), wantDuration: 30 * time.Second},
		{name: "too long", data: wav(31 * time.Second), wantDuration: 31 * time.Second, wantErr: ErrTooLong},
		{name: "unknown container", data: []byte("OggS\x00\x02somebytes")},
		{name: "oversized unknown container", data: make([]byte, MaxSize+1), wantErr: ErrTooLong},
		{name: "truncated wav header", data: []byte("RIFF\x00\x00\x00\x00WAVEfmt ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Validate(tt.data)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if d != tt.wantDuration {
				t.Errorf("Validate() duration = %v, want %v", d, tt.wantDuration)
			}
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	_, err := Validate(wav(31 * time.Second))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want *ValidationError", err)
	}
	if verr.Bound != MaxDuration {
		t.Errorf("Bound = %v, want %v", verr.Bound, MaxDuration)
	}
	if !strings.Contains(verr.Error(), "31.0s") {
		t.Errorf("Error() = %q, want measured duration", verr.Error())
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     string
		wantExt  string
	}{
		{name: "wav magic", data: wav(time.Second), want: "audio/wav", wantExt: "wav"},
		{name: "webm magic", data: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, want: "audio/webm", wantExt: "webm"},
		{name: "ogg magic", data: []byte("OggS...."), want: "audio/ogg", wantExt: "ogg"},
		{name: "id3 magic", data: []byte("ID3\x04"), want: "audio/mpeg", wantExt: "mp3"},
		{name: "mp4 magic", data: []byte("\x00\x00\x00\x20ftypM4A "), want: "audio/mp4", wantExt: "m4a"},
		{name: "by extension", data: []byte{0, 1, 2, 3}, filename: "take.WEBM", want: "audio/webm", wantExt: "webm"},
		{name: "fallback", data: []byte{0, 1, 2, 3}, filename: "blob", want: "audio/mpeg", wantExt: "mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentType(tt.data, tt.filename)
			if got != tt.want {
				t.Errorf("ContentType() = %q, want %q", got, tt.want)
			}
			if ext := Extension(got); ext != tt.wantExt {
				t.Errorf("Extension(%q) = %q, want %q", got, ext, tt.wantExt)
			}
		})
	}
}

func TestOpenAITranscriber(t *testing.T) {
	var gotLang, gotModel, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("content type: %v", err)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("next part: %v", err)
				return
			}
			b, _ := io.ReadAll(p)
			switch p.FormName() {
			case "language":
				gotLang = string(b)
			case "model":
				gotModel = string(b)
			case "file":
				gotFile = p.FileName()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "  Ich spreche Deutsch. "}`))
	}))
	defer srv.Close()

	tr, err := NewOpenAITranscriber("test-key", "", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewOpenAITranscriber: %v", err)
	}
	text, err := tr.Transcribe(context.Background(), wav(time.Second), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Ich spreche Deutsch." {
		t.Errorf("text = %q", text)
	}
	if gotLang != "de" || gotModel != "whisper-1" || gotFile != "recording.wav" {
		t.Errorf("request language=%q model=%q file=%q", gotLang, gotModel, gotFile)
	}
}

func TestOpenAITranscriberNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": ""}`))
	}))
	defer srv.Close()

	tr, err := NewOpenAITranscriber("test-key", "whisper-1", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewOpenAITranscriber: %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), []byte("ID3...."), "a.mp3"); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Transcribe() error = %v, want ErrNoSpeech", err)
	}
}

func TestOpenAISynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	s, err := NewOpenAISynthesizer("test-key", "", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewOpenAISynthesizer: %v", err)
	}
	data, err := s.Synthesize(context.Background(), "Bach")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(data) != "ID3fake-mp3" {
		t.Errorf("data = %q", data)
	}
}

func TestTranslateSynthesizer(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "rejected", status: http.StatusTooManyRequests, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("tl") != "de" || q.Get("q") != "Grüße" || q.Get("textlen") != "5" {
					t.Errorf("query = %v", q)
				}
				if r.Header.Get("User-Agent") == "" {
					t.Error("missing user agent")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("mp3"))
			}))
			defer srv.Close()

			data, err := NewTranslateSynthesizer(srv.URL).Synthesize(context.Background(), "Grüße")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Synthesize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(data) != "mp3" {
				t.Errorf("data = %q", data)
			}
		})
	}
}

func TestNewClientsRequireKey(t *testing.T) {
	if _, err := NewOpenAITranscriber("", ""); err == nil {
		t.Error("NewOpenAITranscriber() error = nil")
	}
	if _, err := NewOpenAISynthesizer("", ""); err == nil {
		t.Error("NewOpenAISynthesizer() error = nil")
	}
}
