package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestObjectKeys(t *testing.T) {
	if got := ExportKey("ad1", "ex1"); got != "exports/ad1/ex1.pdf" {
		t.Fatalf("export key %s", got)
	}
	if got := BlockAssetKey("ad1", "abc", "png"); got != "block-assets/ad1/abc.png" {
		t.Fatalf("asset key %s", got)
	}
	if got := TemplatePreviewKey("t1"); got != "thumbnails/template/t1/preview.jpg" {
		t.Fatalf("preview key %s", got)
	}
}

func TestIsNoSuchKey(t *testing.T) {
	cases := []struct {
		name string
		err  error
		key  bool
		bkt  bool
	}{
		{"nil", nil, false, false},
		{"minio key", fmt.Errorf("stat: %w", minio.ErrorResponse{Code: "NoSuchKey"}), true, false},
		{"minio bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, false, true},
		{"string", errors.New("The specified key does not exist."), true, false},
		{"other", errors.New("connection refused"), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNoSuchKey(tc.err); got != tc.key {
				t.Fatalf("IsNoSuchKey=%v", got)
			}
			if got := IsNoSuchBucket(tc.err); got != tc.bkt {
				t.Fatalf("IsNoSuchBucket=%v", got)
			}
		})
	}
}
