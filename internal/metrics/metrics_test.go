package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAsynqMiddlewareClassifiesResults(t *testing.T) {
	handlers := map[string]error{
		"test:ok":     nil,
		"test:retry":  errors.New("render timeout"),
		"test:failed": fmt.Errorf("bad payload: %w", asynq.SkipRetry),
	}
	mw := AsynqMetricsMiddleware()
	for typ, ret := range handlers {
		ret := ret
		h := mw(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return ret }))
		if err := h.ProcessTask(context.Background(), asynq.NewTask(typ, nil)); !errors.Is(err, ret) {
			t.Fatalf("%s: middleware changed error to %v", typ, err)
		}
	}

	for typ, want := range map[string]string{"test:ok": "ok", "test:retry": "retry", "test:failed": "failed"} {
		if got := testutil.ToFloat64(tasksTotal.WithLabelValues(typ, want)); got != 1 {
			t.Fatalf("%s/%s = %v", typ, want, got)
		}
		if got := testutil.ToFloat64(tasksInProgress.WithLabelValues(typ)); got != 0 {
			t.Fatalf("%s still in progress", typ)
		}
	}
}

func TestGinMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/ads/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ads/"+id, nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(requestTotal.WithLabelValues("GET", "/v1/ads/:id", "200")); got != 2 {
		t.Fatalf("route counter = %v", got)
	}
	if got := testutil.ToFloat64(requestTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched counter = %v", got)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(feedBlocksImported.WithLabelValues("xml"))
	AddImportedBlocks("xml", 3)
	if got := testutil.ToFloat64(feedBlocksImported.WithLabelValues("xml")); got-before != 3 {
		t.Fatalf("imported delta = %v", got-before)
	}
	SetLiveSessions(4)
	if got := testutil.ToFloat64(liveSessions); got != 4 {
		t.Fatalf("live sessions = %v", got)
	}
}
