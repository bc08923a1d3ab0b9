package report

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	objects map[string]string
	failOn  string
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.failOn {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[aws.ToString(in.Bucket)+"/"+key] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{"s3://bucket/runs/2024", "bucket", "runs/2024", false},
		{"s3://bucket", "bucket", "", false},
		{"s3://bucket/runs/", "bucket", "runs", false},
		{"s3://", "", "", true},
		{"/local/path", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseS3URI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseS3URI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Bucket != tt.bucket || got.Prefix != tt.prefix {
				t.Errorf("ParseS3URI() = %+v, want bucket %q prefix %q", got, tt.bucket, tt.prefix)
			}
		})
	}
}

func TestS3URI_Key(t *testing.T) {
	if got := (&S3URI{Bucket: "b", Prefix: "runs/1"}).Key("out.tips"); got != "runs/1/out.tips" {
		t.Errorf("Key() = %q", got)
	}
	if got := (&S3URI{Bucket: "b"}).Key("out.tips"); got != "out.tips" {
		t.Errorf("Key() without prefix = %q", got)
	}
}

func TestUploader_UploadFiles(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"out.tips", "out.mk"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}

	client := &fakePutter{}
	u := NewUploaderWithClient(client, &S3URI{Bucket: "results", Prefix: "exp1"})
	n, err := u.UploadFiles(context.Background(), dir, files)
	if err != nil {
		t.Fatalf("UploadFiles() error = %v", err)
	}
	if n != 2 {
		t.Errorf("uploaded %d files, want 2", n)
	}
	if got := client.objects["results/exp1/out.tips"]; got != "out.tips" {
		t.Errorf("object out.tips = %q", got)
	}
	if _, ok := client.objects["results/exp1/out.mk"]; !ok {
		t.Error("out.mk was not uploaded")
	}
}

func TestUploader_StopsOnError(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a", "b", "c"} {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte(name), 0644)
		files = append(files, p)
	}

	u := NewUploaderWithClient(&fakePutter{failOn: "b"}, &S3URI{Bucket: "results"})
	n, err := u.UploadFiles(context.Background(), dir, files)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if n != 1 {
		t.Errorf("uploaded %d files before failing, want 1", n)
	}
}

func TestUploader_KeysFollowOutputDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "samples", "out.infected")
	outside := filepath.Join(t.TempDir(), "elsewhere.db")
	for _, p := range []string{nested, outside} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	client := &fakePutter{}
	u := NewUploaderWithClient(client, &S3URI{Bucket: "results", Prefix: "exp1"})
	if _, err := u.UploadFiles(context.Background(), dir, []string{nested, outside}); err != nil {
		t.Fatalf("UploadFiles() error = %v", err)
	}
	if _, ok := client.objects["results/exp1/samples/out.infected"]; !ok {
		t.Errorf("nested file not uploaded under its relative key: %v", client.objects)
	}
	if _, ok := client.objects["results/exp1/elsewhere.db"]; !ok {
		t.Errorf("outside file not uploaded under its base name: %v", client.objects)
	}
}
