package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"adBuilder/internal/errcode"
	"adBuilder/internal/export"
	"adBuilder/internal/model"
	"adBuilder/internal/notify"
	"adBuilder/internal/tasks"
)

type fakeExports struct {
	completed map[string]string
	failed    map[string]string
}

func newFakeExports() *fakeExports {
	return &fakeExports{completed: map[string]string{}, failed: map[string]string{}}
}

func (f *fakeExports) CompleteExport(_ context.Context, id, objectKey string) error {
	f.completed[id] = objectKey
	return nil
}

func (f *fakeExports) FailExport(_ context.Context, id, reason string) error {
	f.failed[id] = reason
	return nil
}

type fakeUploader struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeUploader) UploadFile(_ context.Context, name string, r io.Reader, _ int64, contentType string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(r)
	f.objects[name] = b
	f.types[name] = contentType
	return &minio.UploadInfo{Key: name}, nil
}

type recordingRedis struct {
	mu       sync.Mutex
	channels []string
	messages []notify.ExportMessage
}

func (r *recordingRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msg notify.ExportMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	r.channels = append(r.channels, channel)
	r.messages = append(r.messages, msg)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func printServer(t *testing.T, data PrintData) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Internal-Secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/v1/internal/ads/ad-1/print") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("region") != "MIDWEST" || r.URL.Query().Get("exportId") != "ex-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T, srvURL string) (*PDFTaskHandler, *fakeExports, *fakeUploader, *recordingRedis) {
	t.Helper()
	exports := newFakeExports()
	uploader := newFakeUploader()
	rec := &recordingRedis{}
	h := NewPDFTaskHandler(exports, uploader, notify.NewPublisher(rec), slog.New(slog.NewTextHandler(io.Discard, nil)), HandlerConfig{
		InternalSecret:     "s3cret",
		InternalAPIBaseURL: srvURL,
	})
	return h, exports, uploader, rec
}

func pdfTask(t *testing.T) []byte {
	t.Helper()
	task, err := tasks.NewPDFGenerateTask(tasks.PDFGeneratePayload{ExportID: "ex-1", AdID: "ad-1", Region: "MIDWEST"})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	return task.Payload()
}

func TestPDFTaskStoresAndNotifies(t *testing.T) {
	data := PrintData{
		Payload:  export.Payload{AdID: "ad-1", Name: "Week 18", Pages: []export.Page{{ID: "p1", Number: 1, Canvas: model.DefaultCanvas}}},
		Warnings: []PrintWarning{{Code: errcode.ResourceMissing, MissingKeys: []string{"block-assets/ad-1/x.png", "block-assets/ad-1/x.png"}}},
	}
	srv := printServer(t, data)
	h, exports, uploader, rec := newTestHandler(t, srv.URL)

	var rendered PrintData
	h.render = func(_ context.Context, adID string, raw []byte, d PrintData) ([]byte, error) {
		if adID != "ad-1" || len(raw) == 0 {
			t.Fatalf("unexpected render input %s", adID)
		}
		rendered = d
		return []byte("%PDF-1.7"), nil
	}

	task := newAsynqTask(tasks.TypePDFGenerate, pdfTask(t))
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}

	if rendered.Name != "Week 18" || len(rendered.Pages) != 1 {
		t.Fatalf("render got %+v", rendered)
	}
	key := "exports/ad-1/ex-1.pdf"
	if string(uploader.objects[key]) != "%PDF-1.7" || uploader.types[key] != "application/pdf" {
		t.Fatalf("uploaded %v", uploader.objects)
	}
	if exports.completed["ex-1"] != key {
		t.Fatalf("export not completed: %v", exports.completed)
	}
	if len(rec.messages) != 1 || rec.channels[0] != "ad_notify:ad-1" {
		t.Fatalf("notifications %v", rec.channels)
	}
	msg := rec.messages[0]
	if msg.Status != "completed" || msg.ErrorCode != errcode.ResourceMissing || len(msg.MissingKeys) != 1 {
		t.Fatalf("message %+v", msg)
	}
}

func TestPDFTaskFailureOnFinalAttempt(t *testing.T) {
	srv := printServer(t, PrintData{Payload: export.Payload{AdID: "ad-1"}})
	h, exports, _, rec := newTestHandler(t, srv.URL)
	h.render = func(context.Context, string, []byte, PrintData) ([]byte, error) {
		return nil, errors.New("chromium crashed")
	}

	task := newAsynqTask(tasks.TypePDFGenerate, pdfTask(t))

	h.finalAttempt = func(context.Context) bool { return false }
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatalf("expected error")
	}
	if len(exports.failed) != 0 || len(rec.messages) != 0 {
		t.Fatalf("non-final attempt must not report failure")
	}

	h.finalAttempt = func(context.Context) bool { return true }
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(exports.failed["ex-1"], "chromium crashed") {
		t.Fatalf("failed %v", exports.failed)
	}
	if len(rec.messages) != 1 || rec.messages[0].Status != "error" || rec.messages[0].ErrorCode != errcode.SystemError {
		t.Fatalf("messages %+v", rec.messages)
	}
}

func TestPrintClientRequiresSecret(t *testing.T) {
	c := newPrintClient("http://localhost", "")
	if _, err := c.fetch(context.Background(), "ad-1", "", "", 0, ""); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestInjectionScriptQuotesJSON(t *testing.T) {
	script := buildPrintDataInjectionScript([]byte(`{"name":"</script><b>"}`))
	if !strings.HasPrefix(script, "() => { window.__PRINT_DATA__ = JSON.parse(\"") {
		t.Fatalf("script %s", script)
	}
	if strings.Contains(script, `{"name"`) {
		t.Fatalf("json must be quoted: %s", script)
	}
}
