package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"adBuilder/internal/model"
)

const xmlFeed = `<?xml version="1.0"?>
<blocks>
  <block>
    <upc>A</upc>
    <productName>Honeycrisp Apples</productName>
    <price><priceType>each</priceType><adPrice>2.49</adPrice></price>
  </block>
  <block>
    <upc>C</upc>
    <productName>Bananas &lt;b&gt;ripe&lt;/b&gt;</productName>
    <price>0.59</price>
  </block>
</blocks>`

func TestImportFeedReusesIDsPerUPC(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	base := "/v1/ads/" + ad.ID

	w := ts.do(t, http.MethodPost, base+"/block-data/import", xmlFeed, "Content-Type", "application/xml")
	if w.Code != http.StatusOK {
		t.Fatalf("import: %d %s", w.Code, w.Body.String())
	}
	res := decode[struct {
		Imported int               `json:"imported"`
		Blocks   []model.BlockData `json:"blocks"`
	}](t, w)
	if res.Imported != 2 || res.Blocks[0].ID != "bd1" {
		t.Fatalf("UPC A should keep id bd1, got %+v", res)
	}
	if res.Blocks[1].Feed.ProductName != "Bananas ripe" {
		t.Fatalf("markup should be stripped, got %q", res.Blocks[1].Feed.ProductName)
	}

	w = ts.do(t, http.MethodGet, base+"/prices/A", nil)
	p := decode[effectivePrice](t, w)
	if p.Price == nil || *p.Price.AdPrice != 2.49 || !p.RecentlyUpdated {
		t.Fatalf("re-import should refresh and flag the price, got %+v", p)
	}
}

func TestImportFeedMultipartAndErrors(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	path := "/v1/ads/" + ad.ID + "/block-data/import"

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, _ := mw.CreateFormFile("file", "feed.json")
	part.Write([]byte(`{"blocks":[{"upc":"D","productName":"Dates","price":3.5}]}`))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("multipart import: %d %s", w.Code, w.Body.String())
	}

	if w := ts.do(t, http.MethodPost, path, "plain text", "Content-Type", "text/plain"); w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format should be 400, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, path, `[{"blockType":"product"}]`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid block should be 400, got %d", w.Code)
	}
}

func TestListBlocksReportsPlaced(t *testing.T) {
	ts := newTestServer(t)
	ad := ts.seedAd(t)
	base := "/v1/ads/" + ad.ID

	w := ts.do(t, http.MethodPost, base+"/block-data", map[string]any{
		"blockType": "promotional",
		"feedJson":  map[string]any{"headline": "<i>Digital Deals</i>", "priceText": "$1 Digital Deals"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create block: %d %s", w.Code, w.Body.String())
	}
	promo := decode[model.BlockData](t, w)
	if promo.Feed.Headline != "Digital Deals" || promo.ID == "" {
		t.Fatalf("unexpected block %+v", promo)
	}

	ts.do(t, http.MethodPost, base+"/placements", map[string]any{"pageId": firstPageID(ad), "blockDataId": "bd1"})

	w = ts.do(t, http.MethodGet, base+"/block-data", nil)
	items := decode[[]blockItem](t, w)
	placed := map[string]bool{}
	for _, it := range items {
		placed[it.ID] = it.Placed
	}
	if len(items) != 2 || !placed["bd1"] || placed[promo.ID] {
		t.Fatalf("unexpected placed flags %v", placed)
	}

	replacement := map[string]any{
		"blockType": "product",
		"upc":       "A",
		"feedJson":  map[string]any{"productName": "Gala Apples"},
	}
	if w := ts.do(t, http.MethodPut, base+"/block-data/bd1", replacement); w.Code != http.StatusOK {
		t.Fatalf("replace: %d %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodPut, base+"/block-data/ghost", replacement); w.Code != http.StatusNotFound {
		t.Fatalf("replacing an unknown block should be 404, got %d", w.Code)
	}
}
