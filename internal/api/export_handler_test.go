package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"adBuilder/internal/database"
	"adBuilder/internal/errcode"
	"adBuilder/internal/model"
	"adBuilder/internal/storage"
	"adBuilder/internal/tasks"
)

func TestExportEnqueuesAndRateLimits(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	base := "/v1/ads/" + ad.ID

	for i := 0; i < 2; i++ {
		w := ts.do(t, http.MethodPost, base+"/export", map[string]any{"region": "MIDWEST"})
		if w.Code != http.StatusAccepted {
			t.Fatalf("export %d: %d %s", i, w.Code, w.Body.String())
		}
	}
	w := ts.do(t, http.MethodPost, base+"/export", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	if got := ts.queue.types(); len(got) != 2 || got[0] != tasks.TypePDFGenerate {
		t.Fatalf("unexpected tasks %v", got)
	}
	var p tasks.PDFGeneratePayload
	if err := json.Unmarshal(ts.queue.tasks[0].Payload(), &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.AdID != ad.ID || p.Region != "MIDWEST" || p.ExportID == "" || p.CorrelationID == "" {
		t.Fatalf("unexpected payload %+v", p)
	}

	w = ts.do(t, http.MethodGet, base+"/exports", nil)
	if items := decode[[]exportItem](t, w); len(items) != 2 || items[0].Status != database.ExportPending {
		t.Fatalf("unexpected exports %+v", items)
	}
}

func TestDownloadLinkRequiresCompletedExport(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	ctx := context.Background()

	row, err := ts.repo.CreateExport(ctx, ad.ID, "", 0, nil)
	if err != nil {
		t.Fatalf("create export: %v", err)
	}
	link := "/v1/ads/" + ad.ID + "/exports/" + row.ID + "/link"

	if w := ts.do(t, http.MethodGet, link, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 before completion, got %d", w.Code)
	}
	if err := ts.repo.CompleteExport(ctx, row.ID, storage.ExportKey(ad.ID, row.ID)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	w := ts.do(t, http.MethodGet, link, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("link: %d %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/v1/ads/"+ad.ID+"/exports/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestInternalPrintRequiresSecret(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	ctx := context.Background()

	missing := storage.BlockAssetKey(ad.ID, "gone", "png")
	ts.storage.missing[missing] = true
	price := 0.99
	if _, err := ts.repo.UpsertBlocks(ctx, ad.ID, []model.BlockData{{
		ID: "bd2", UPC: "B", BlockType: model.BlockTypeProduct,
		Feed: model.FeedPayload{ProductName: "Pears", Price: &model.PriceData{AdPrice: &price}, Images: model.Images{Product: &missing}},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	base := "/v1/ads/" + ad.ID
	ts.do(t, http.MethodPost, base+"/placements", map[string]any{"pageId": firstPageID(ad), "blockDataId": "bd1"})
	ts.do(t, http.MethodPost, base+"/placements", map[string]any{"pageId": firstPageID(ad), "blockDataId": "bd2"})

	path := "/v1/internal/ads/" + ad.ID + "/print?region=MIDWEST"
	if w := ts.do(t, http.MethodGet, path, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, path, nil, "X-Internal-Secret", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong secret, got %d", w.Code)
	}

	w := ts.do(t, http.MethodGet, path, nil, "X-Internal-Secret", testSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("print: %d %s", w.Code, w.Body.String())
	}
	data := decode[PrintData](t, w)
	if data.Region != "MIDWEST" || len(data.Pages) != 1 || len(data.Pages[0].Blocks) != 2 {
		t.Fatalf("unexpected print data %+v", data.Payload)
	}
	if len(data.Warnings) != 1 || data.Warnings[0].Code != errcode.ResourceMissing || data.Warnings[0].MissingKeys[0] != missing {
		t.Fatalf("unexpected warnings %+v", data.Warnings)
	}
	for _, b := range data.Pages[0].Blocks {
		if b.BlockDataID == "bd2" && (!b.Image.Placeholder || b.Image.URL != nil) {
			t.Fatalf("missing image should become a placeholder: %+v", b.Image)
		}
		if b.BlockDataID == "bd1" && (b.Image.URL == nil || *b.Image.URL != "https://img.example.invalid/apples.png") {
			t.Fatalf("external image should be kept: %+v", b.Image)
		}
	}
}

func TestPrintDataServesExportSnapshot(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	base := "/v1/ads/" + ad.ID
	ts.do(t, http.MethodPost, base+"/placements", map[string]any{"pageId": firstPageID(ad), "blockDataId": "bd1"})

	w := ts.do(t, http.MethodPost, base+"/export", map[string]any{"region": "MIDWEST"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}
	exp := decode[exportItem](t, w)

	// 入队之后继续编辑，导出内容不应受影响
	state := decode[adResponse](t, ts.do(t, http.MethodGet, base, nil))
	pid := state.Ad.Sections[0].Pages[0].Blocks[0].ID
	if w := ts.do(t, http.MethodDelete, base+"/placements/"+pid, nil); w.Code != http.StatusOK {
		t.Fatalf("remove placement: %d %s", w.Code, w.Body.String())
	}

	printPath := "/v1/internal/ads/" + ad.ID + "/print"
	w = ts.do(t, http.MethodGet, printPath+"?exportId="+exp.ID, nil, "X-Internal-Secret", testSecret)
	if w.Code != http.StatusOK {
		t.Fatalf("frozen print: %d %s", w.Code, w.Body.String())
	}
	frozen := decode[PrintData](t, w)
	if frozen.Region != "MIDWEST" || len(frozen.Pages) != 1 || len(frozen.Pages[0].Blocks) != 1 {
		t.Fatalf("expected the enqueued state, got %+v", frozen.Payload)
	}

	w = ts.do(t, http.MethodGet, printPath+"?region=MIDWEST", nil, "X-Internal-Secret", testSecret)
	if live := decode[PrintData](t, w); len(live.Pages[0].Blocks) != 0 {
		t.Fatalf("live print should follow the session, got %d blocks", len(live.Pages[0].Blocks))
	}

	if w := ts.do(t, http.MethodGet, printPath+"?exportId=nope", nil, "X-Internal-Secret", testSecret); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown export, got %d", w.Code)
	}
}
