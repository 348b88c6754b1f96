package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"exports/q1/a.csv", "exports/q1/a.csv", false},
		{"/exports/q1/a.csv", "exports/q1/a.csv", false},
		{"exports/../conf/db_config.json", "", true},
		{"conf/db_config.json", "", true},
		{"exports/", "", true},
		{`exports\q1\a.csv`, "exports/q1/a.csv", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportKey(t *testing.T) {
	if got := ExportKey("q1", "../report.csv"); got != "exports/q1/report.csv" {
		t.Errorf("got %q", got)
	}
}

func writeAll(t *testing.T, p Provider, key, body string) {
	t.Helper()
	w, done := p.StreamToFile(context.Background(), key)
	if w == nil {
		t.Fatalf("StreamToFile failed: %v", <-done)
	}
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("upload failed: %v", err)
	}
}

func TestLocalProvider_RoundTrip(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	key := ExportKey("q1", "out.csv")
	writeAll(t, p, key, "a,b\n1,2\n")

	r, err := p.OpenFile(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("got %q", data)
	}

	if _, err := p.OpenFile(context.Background(), ExportKey("q2", "none.csv")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := p.OpenFile(context.Background(), "exports/../../etc/passwd"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if w, done := p.StreamToFile(context.Background(), "elsewhere/x"); w != nil || !errors.Is(<-done, ErrInvalidKey) {
		t.Error("writes outside the export prefix must fail")
	}
}

func TestLocalProvider_Sweep(t *testing.T) {
	base := t.TempDir()
	p := NewLocalProvider(base)
	writeAll(t, p, ExportKey("old", "a.csv"), "x")
	writeAll(t, p, ExportKey("new", "b.csv"), "y")

	past := time.Now().Add(-3 * time.Hour)
	oldPath := filepath.Join(base, "exports", "old", "a.csv")
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := p.Sweep(context.Background(), time.Now().Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if _, err := os.Stat(filepath.Join(base, "exports", "old")); !os.IsNotExist(err) {
		t.Error("emptied directory should be removed")
	}
	if _, err := p.OpenFile(context.Background(), ExportKey("new", "b.csv")); err != nil {
		t.Errorf("fresh export removed: %v", err)
	}
}

func TestLocalProvider_SweepEmpty(t *testing.T) {
	p := NewLocalProvider(t.TempDir())
	if n, err := p.Sweep(context.Background(), time.Now()); n != 0 || err != nil {
		t.Errorf("Sweep = %d, %v", n, err)
	}
}

// fakeS3 keeps objects in memory. Methods it does not override panic
// through the nil embedded interface.
type fakeS3 struct {
	objectAPI
	mu      sync.Mutex
	objects map[string][]byte
	times   map[string]time.Time
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, times: map[string]time.Time{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	f.times[*in.Key] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			mod := f.times[k]
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k), LastModified: &mod})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, *obj.Key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3Provider(t *testing.T) {
	fake := newFakeS3()
	p := NewS3Provider(fake, "bucket")
	key := ExportKey("q1", "out.json")
	writeAll(t, p, key, `{"a":1}`)

	r, err := p.OpenFile(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != `{"a":1}` {
		t.Errorf("got %q", data)
	}
	if _, err := p.OpenFile(context.Background(), ExportKey("q9", "x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	fake.times[key] = time.Now().Add(-5 * time.Hour)
	writeAll(t, p, ExportKey("q2", "fresh.json"), "{}")
	n, err := p.Sweep(context.Background(), time.Now().Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if _, ok := fake.objects[key]; ok {
		t.Error("stale object not deleted")
	}
}
