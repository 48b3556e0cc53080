package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestKeys(t *testing.T) {
	user := regexp.MustCompile(`^users/pronunciation/user/user_[0-9a-f-]{36}\.webm$`)
	if k := UserAudioKey("webm"); !user.MatchString(k) {
		t.Errorf("UserAudioKey() = %q", k)
	}
	if k := UserAudioKey(""); filepath.Ext(k) != ".mp3" {
		t.Errorf("UserAudioKey(\"\") = %q, want .mp3", k)
	}
	bench := regexp.MustCompile(`^users/pronunciation/benchmarks/benchmark_[0-9a-f-]{36}\.mp3$`)
	if k := BenchmarkKey(); !bench.MatchString(k) {
		t.Errorf("BenchmarkKey() = %q", k)
	}
	if UserAudioKey("mp3") == UserAudioKey("mp3") {
		t.Error("keys are not unique")
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "users/a.mp3", want: "users/a.mp3"},
		{key: "/users/a.mp3", want: "users/a.mp3"},
		{key: "../etc/passwd", wantErr: true},
		{key: "users/../../x", wantErr: true},
		{key: "", wantErr: true},
		{key: "users//a.mp3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("cleanKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("error = %v, want ErrInvalidKey", err)
			}
			if got != tt.want {
				t.Errorf("cleanKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "/audio/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	url, err := s.Put(context.Background(), "users/pronunciation/user/u1.mp3", []byte("ID3"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/audio/users/pronunciation/user/u1.mp3" {
		t.Errorf("url = %q", url)
	}
	got, err := os.ReadFile(filepath.Join(dir, "users", "pronunciation", "user", "u1.mp3"))
	if err != nil || string(got) != "ID3" {
		t.Errorf("stored = %q, %v", got, err)
	}

	if _, err := s.Put(context.Background(), "../escape.mp3", []byte("x"), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put() escape error = %v, want ErrInvalidKey", err)
	}
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantURL string
	}{
		{
			name:    "custom endpoint",
			cfg:     S3Config{Bucket: "laut", Region: "eu-central", Endpoint: "https://fsn1.example.com/"},
			wantURL: "https://fsn1.example.com/laut/users/a.mp3",
		},
		{
			name:    "public base url",
			cfg:     S3Config{Bucket: "laut", Region: "eu-central-1", PublicBaseURL: "https://cdn.example.com"},
			wantURL: "https://cdn.example.com/users/a.mp3",
		},
		{
			name:    "aws",
			cfg:     S3Config{Bucket: "laut", Region: "eu-central-1"},
			wantURL: "https://laut.s3.eu-central-1.amazonaws.com/users/a.mp3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeS3{}
			s := newS3Store(fake, tt.cfg)
			url, err := s.Put(context.Background(), "users/a.mp3", []byte("ID3"), "audio/mpeg")
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if url != tt.wantURL {
				t.Errorf("url = %q, want %q", url, tt.wantURL)
			}
			if *fake.in.Bucket != "laut" || *fake.in.Key != "users/a.mp3" || *fake.in.ContentType != "audio/mpeg" {
				t.Errorf("input = %+v", fake.in)
			}
			if fake.in.ACL != types.ObjectCannedACLPublicRead {
				t.Errorf("ACL = %q", fake.in.ACL)
			}
			if string(fake.body) != "ID3" {
				t.Errorf("body = %q", fake.body)
			}
		})
	}
}

func TestS3StorePutError(t *testing.T) {
	boom := errors.New("denied")
	s := newS3Store(&fakeS3{err: boom}, S3Config{Bucket: "b", Region: "r"})
	if _, err := s.Put(context.Background(), "k.mp3", nil, "audio/mpeg"); !errors.Is(err, boom) {
		t.Errorf("Put() error = %v, want %v", err, boom)
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{Region: "eu-central-1"}); err == nil {
		t.Error("NewS3Store() error = nil, want missing bucket")
	}
}
