package api

import (
	"context"
	"net/http"
	"testing"

	"adBuilder/internal/database"
	"adBuilder/internal/model"
)

func TestSubmitCreatesVersionAndAudit(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	base := "/v1/ads/" + ad.ID

	ts.do(t, http.MethodPost, base+"/placements", map[string]any{"pageId": firstPageID(ad), "blockDataId": "bd1"})

	w := ts.do(t, http.MethodPost, base+"/workflow/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	got := decode[adResponse](t, w)
	if got.Ad.Status != model.StatusInReview || got.Ad.Version != 1 {
		t.Fatalf("unexpected state %+v", got.Ad)
	}

	ctx := context.Background()
	versions, err := ts.repo.ListVersions(ctx, ad.ID)
	if err != nil || len(versions) != 1 || versions[0].Version != 1 {
		t.Fatalf("versions %+v %v", versions, err)
	}
	stored, _ := ts.repo.LoadAd(ctx, ad.ID)
	if stored.Status != model.StatusInReview || !stored.IsPlaced("bd1") {
		t.Fatalf("submit must persist the edited graph and status, got %+v", stored)
	}

	w = ts.do(t, http.MethodPost, base+"/workflow/request_changes", map[string]any{"comment": "Swap the hero"})
	if w.Code != http.StatusOK {
		t.Fatalf("request changes: %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodGet, base+"/audit", nil)
	audit := decode[[]auditItem](t, w)
	if len(audit) != 2 || audit[1].Comment != "Swap the hero" || audit[1].ToStatus != model.StatusDraft {
		t.Fatalf("unexpected audit %+v", audit)
	}

	w = ts.do(t, http.MethodGet, base+"/versions/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get version: %d", w.Code)
	}
	snap := decode[model.Ad](t, w)
	if snap.Status != model.StatusInReview || snap.Version != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestInvalidTransitionConflicts(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)

	w := ts.do(t, http.MethodPost, "/v1/ads/"+ad.ID+"/workflow/publish", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodPost, "/v1/ads/"+ad.ID+"/workflow/explode", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unknown action, got %d", w.Code)
	}
}

func TestSubmitRollsBackWhenVersionCannotBeStored(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	base := "/v1/ads/" + ad.ID
	ctx := context.Background()

	// 版本表缺失时快照写入必然失败
	if err := ts.repo.DB().Migrator().DropTable(&database.AdVersion{}); err != nil {
		t.Fatalf("drop versions: %v", err)
	}

	w := ts.do(t, http.MethodPost, base+"/workflow/submit", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %s", w.Code, w.Body.String())
	}
	stored, err := ts.repo.LoadAd(ctx, ad.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Status != model.StatusDraft || stored.Version != 0 {
		t.Fatalf("status must roll back, got %s v%d", stored.Status, stored.Version)
	}
	s, err := ts.sessions.Get(ctx, ad.ID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if live := s.Document().Snapshot(); live.Status != model.StatusDraft || live.Version != 0 {
		t.Fatalf("session must stay draft, got %s v%d", live.Status, live.Version)
	}

	if err := ts.repo.DB().AutoMigrate(&database.AdVersion{}); err != nil {
		t.Fatalf("restore versions: %v", err)
	}
	w = ts.do(t, http.MethodPost, base+"/workflow/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("retry submit: %d %s", w.Code, w.Body.String())
	}
	versions, err := ts.repo.ListVersions(ctx, ad.ID)
	if err != nil || len(versions) != 1 || versions[0].Version != 1 {
		t.Fatalf("versions %+v %v", versions, err)
	}
}
