package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"adBuilder/internal/config"
	"adBuilder/internal/database"
	"adBuilder/internal/model"
	"adBuilder/internal/session"
	"adBuilder/internal/storage"
)

const testSecret = "s3cret"

func newTestRepo(t *testing.T) *database.Repository {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database.NewRepository(db)
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (q *fakeQueue) types() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Type())
	}
	return out
}

type fakeRedis struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}}
}

func (r *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(r.counts[key])
	return cmd
}

func (r *fakeRedis) Expire(ctx context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (r *fakeRedis) Subscribe(context.Context, ...string) *redis.PubSub {
	return nil
}

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	missing  map[string]bool
	prefixes []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}, missing: map[string]bool{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.mu.Lock()
	s.uploaded[objectName] = b
	s.mu.Unlock()
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) StatObject(_ context.Context, key string) (storage.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[key] {
		return storage.ObjectMeta{}, minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return storage.ObjectMeta{Key: key, ContentType: "image/png"}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.example.invalid/" + key + "?sig=1", nil
}

func (s *fakeStorage) GeneratePresignedURLWithParams(_ context.Context, key string, _ time.Duration, params map[string]string) (string, error) {
	return "https://cdn.example.invalid/" + key + "?disposition=" + params["response-content-disposition"], nil
}

func (s *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	s.prefixes = append(s.prefixes, prefix)
	s.mu.Unlock()
	return nil
}

type testServer struct {
	router   *gin.Engine
	repo     *database.Repository
	sessions *session.Manager
	queue    *fakeQueue
	redis    *fakeRedis
	storage  *fakeStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newTestRepo(t)
	ts := &testServer{
		repo:     repo,
		sessions: session.NewManager(repo, session.Options{Logger: logger}),
		queue:    &fakeQueue{},
		redis:    newFakeRedis(),
		storage:  newFakeStorage(),
	}
	cfg := &config.Config{API: config.APIConfig{InternalSecret: testSecret, ExportsPerHour: 2}}
	ts.router = NewRouter(cfg, Dependencies{
		Repo:     repo,
		Sessions: ts.sessions,
		Queue:    ts.queue,
		Redis:    ts.redis,
		Storage:  ts.storage,
		Logger:   logger,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// seedAd 创建一个草稿广告，带一个商品区块 bd1（UPC A，1.99）。
func (ts *testServer) seedAd(t *testing.T) model.Ad {
	t.Helper()
	ctx := context.Background()
	ad, err := ts.repo.CreateAd(ctx, database.NewAdInput{Name: "Week 18", RegionIDs: []string{model.RegionMidwest}})
	if err != nil {
		t.Fatalf("create ad: %v", err)
	}
	price := 1.99
	img := "https://img.example.invalid/apples.png"
	if _, err := ts.repo.UpsertBlocks(ctx, ad.ID, []model.BlockData{{
		ID: "bd1", UPC: "A", BlockType: model.BlockTypeProduct,
		Feed: model.FeedPayload{
			ProductName: "Apples",
			Headline:    "Fresh Apples",
			Price:       &model.PriceData{PriceType: model.PriceEach, AdPrice: &price},
			Images:      model.Images{Product: &img},
		},
	}}); err != nil {
		t.Fatalf("seed blocks: %v", err)
	}
	return ad
}

func firstPageID(ad model.Ad) string {
	return ad.Sections[0].Pages[0].ID
}
