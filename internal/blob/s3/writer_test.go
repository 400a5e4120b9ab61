package s3blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	manager.UploadAPIClient
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestWriterPut(t *testing.T) {
	fake := &fakeS3{}
	w := &Writer{client: fake, bucket: "journals"}

	if err := w.Put(context.Background(), "2025/06/02/log.json", strings.NewReader(`{"ok":true}`), "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if *fake.input.Bucket != "journals" || *fake.input.Key != "2025/06/02/log.json" || *fake.input.ContentType != "application/json" {
		t.Fatalf("input = %+v", fake.input)
	}
	if fake.body != `{"ok":true}` {
		t.Fatalf("body = %s", fake.body)
	}
}

func TestWriterPutError(t *testing.T) {
	w := &Writer{client: &fakeS3{err: errors.New("denied")}, bucket: "b"}
	if err := w.Put(context.Background(), "k", strings.NewReader("x"), "text/plain"); err == nil || !strings.Contains(err.Error(), "s3blob: put object k") {
		t.Fatalf("err = %v", err)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	cases := map[string]string{
		"https://e2.example.com": "https://e2.example.com",
		"minio.local:9000":       "http://minio.local:9000",
	}
	for in, want := range cases {
		if got := normaliseEndpoint(in, false); got != want {
			t.Fatalf("normaliseEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
	if got := normaliseEndpoint("r2.example.com", true); got != "https://r2.example.com" {
		t.Fatalf("ssl endpoint = %q", got)
	}
}
