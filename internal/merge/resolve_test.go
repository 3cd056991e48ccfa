package merge

import (
	"reflect"
	"testing"

	"adBuilder/internal/model"
	"adBuilder/internal/pricing"
)

func ptr[T any](v T) *T { return &v }

func productBlock() *model.BlockData {
	return &model.BlockData{
		ID:        "bd1",
		UPC:       "A",
		BlockType: model.BlockTypeProduct,
		Feed: model.FeedPayload{
			ProductName: "Honeycrisp Apples",
			Headline:    "Crisp & Sweet",
			Description: "Washington grown",
			Price:       &model.PriceData{PriceType: model.PricePerLb, AdPrice: ptr(1.99)},
			Images:      model.Images{Product: ptr("https://img/p.png"), Lifestyle: ptr("https://img/l.png")},
			Stamps:      []string{"SALE", "NEW", "LOCAL"},
		},
	}
}

func placed(overrides model.Overrides) model.PlacedBlock {
	return model.PlacedBlock{
		ID: "pb1", PageID: "P1", BlockDataID: "bd1",
		Width: 200, Height: 280, ZIndex: 1,
		Overrides: overrides,
	}
}

func TestDisplayModePrecedence(t *testing.T) {
	promo := &model.BlockData{ID: "bd2", BlockType: model.BlockTypePromotional, Feed: model.FeedPayload{PriceText: "$1 Digital Deals"}}

	if got := Resolve(placed(nil), productBlock(), nil, Options{}).DisplayMode; got != ModeProductImage {
		t.Fatalf("product default: %s", got)
	}
	if got := Resolve(placed(nil), promo, nil, Options{}).DisplayMode; got != ModeSaleBand {
		t.Fatalf("promotional default: %s", got)
	}

	ov := model.Overrides{}.Merge(model.Overrides{
		model.OverrideDisplayMode:     ModeSaleBand,
		model.OverrideBackgroundColor: "#C8102E",
	})
	out := Resolve(placed(ov), productBlock(), nil, Options{})
	if out.DisplayMode != ModeSaleBand || out.BackgroundColor != "#C8102E" {
		t.Fatalf("override should select sale band: %+v", out)
	}
	if len(out.Stamps) != 0 {
		t.Fatalf("sale band renders no stamps: %+v", out.Stamps)
	}
}

func TestTextFieldsFallThroughOnEmpty(t *testing.T) {
	ov := model.Overrides{
		model.OverrideHeadline:    "",
		model.OverrideDescription: "Override copy",
	}
	out := Resolve(placed(ov), productBlock(), nil, Options{})
	if out.Headline != "Crisp & Sweet" {
		t.Fatalf("empty override must fall through to feed, got %q", out.Headline)
	}
	if out.Description != "Override copy" {
		t.Fatalf("override should win, got %q", out.Description)
	}
	if out.Disclaimer != "" {
		t.Fatalf("missing everywhere should be empty, got %q", out.Disclaimer)
	}
}

func TestStampsCappedAndStyled(t *testing.T) {
	out := Resolve(placed(nil), productBlock(), nil, Options{})
	if len(out.Stamps) != 2 || out.Stamps[0].Type != "SALE" || out.Stamps[1].Type != "NEW" {
		t.Fatalf("expected first two feed stamps, got %+v", out.Stamps)
	}
	if out.Stamps[0].Color != StampDefaultFor("SALE").Color {
		t.Fatalf("default color not applied: %+v", out.Stamps[0])
	}

	ov := model.Overrides{
		model.OverrideStamps:      []any{"BOGO", "MYSTERY"},
		model.OverrideStampColors: map[string]any{"BOGO": "#000000"},
		model.OverrideStampTexts:  map[string]string{"MYSTERY": "??"},
		model.OverrideStampSizes:  map[string]any{"BOGO": 80.0},
	}
	out = Resolve(placed(ov), productBlock(), nil, Options{Zoom: 0.5})
	if out.Stamps[0].Color != "#000000" || out.Stamps[0].Size != 40 {
		t.Fatalf("BOGO overrides not applied: %+v", out.Stamps[0])
	}
	if out.Stamps[0].Shape != StampDefaultFor("BOGO").Shape {
		t.Fatalf("shape should fall back to default: %+v", out.Stamps[0])
	}
	if out.Stamps[1].Text != "??" || out.Stamps[1].Size != DefaultStampSize*0.5 {
		t.Fatalf("unknown stamp: %+v", out.Stamps[1])
	}
}

func TestImageSelection(t *testing.T) {
	out := Resolve(placed(nil), productBlock(), nil, Options{})
	if out.Image.Kind != ImageProduct || *out.Image.URL != "https://img/p.png" {
		t.Fatalf("expected product image: %+v", out.Image)
	}

	out = Resolve(placed(model.Overrides{model.OverrideActiveImage: "lifestyle"}), productBlock(), nil, Options{})
	if out.Image.Kind != ImageLifestyle {
		t.Fatalf("activeImage override ignored: %+v", out.Image)
	}

	out = Resolve(placed(model.Overrides{model.OverrideDisplayMode: ModeLifestyleImage, model.OverrideActiveImage: "product"}), productBlock(), nil, Options{})
	if out.Image.Kind != ImageLifestyle {
		t.Fatalf("lifestyle mode must force lifestyle: %+v", out.Image)
	}

	bare := productBlock()
	bare.Feed.Images.Product = nil
	out = Resolve(placed(nil), bare, nil, Options{})
	if !out.Image.Placeholder || out.Image.URL != nil {
		t.Fatalf("missing image should be a placeholder: %+v", out.Image)
	}
}

func TestPriceCircleOverlay(t *testing.T) {
	out := Resolve(placed(nil), productBlock(), nil, Options{})
	if out.PriceCircle != nil {
		t.Fatalf("overlay off by default")
	}

	out = Resolve(placed(model.Overrides{model.OverridePriceCircleOverlay: true}), productBlock(), nil, Options{})
	pc := out.PriceCircle
	if pc == nil || pc.XPercent != 50 || pc.YPercent != 50 {
		t.Fatalf("expected centered circle, got %+v", pc)
	}
	if pc.Size != 70 {
		t.Fatalf("base size should be 35%% of the short side, got %v", pc.Size)
	}

	ov := model.Overrides{
		model.OverridePriceCircleOverlay: true,
		model.OverridePriceScale:         10.0,
		model.OverridePriceX:             20.0,
		model.OverridePriceY:             80,
	}
	pc = Resolve(placed(ov), productBlock(), nil, Options{}).PriceCircle
	if pc.Size != priceCircleMax || pc.XPercent != 20 || pc.YPercent != 80 {
		t.Fatalf("unexpected circle %+v", pc)
	}

	ov[model.OverridePriceScale] = 0.01
	pc = Resolve(placed(ov), productBlock(), nil, Options{}).PriceCircle
	if pc.Size != priceCircleMin {
		t.Fatalf("size should not drop below minimum, got %v", pc.Size)
	}
}

func TestPriceComesFromStore(t *testing.T) {
	store := pricing.NewStore()
	out := Resolve(placed(nil), productBlock(), store, Options{})
	if out.Price == nil || out.Price.FromStore || out.Price.Display != "$1.99/lb" {
		t.Fatalf("expected embedded fallback, got %+v", out.Price)
	}

	store.ImportFeed([]model.BlockData{*productBlock()})
	store.SetRegion(model.RegionMidwest)
	store.LoadOverride(model.RegionMidwest, "A", model.PriceData{PriceType: model.PricePerLb, AdPrice: ptr(1.49)})

	out = Resolve(placed(nil), productBlock(), store, Options{})
	if !out.Price.FromStore || out.Price.Display != "$1.49/lb" {
		t.Fatalf("regional price not used: %+v", out.Price)
	}

	promo := &model.BlockData{ID: "bd2", BlockType: model.BlockTypePromotional, Feed: model.FeedPayload{PriceText: "$1 Digital Deals"}}
	out = Resolve(placed(model.Overrides{model.OverridePriceText: "2 for $3"}), promo, store, Options{})
	if out.Price != nil || out.PriceText != "2 for $3" {
		t.Fatalf("promotional text path: %+v", out)
	}
}

func TestResolveIsIdempotentAndPure(t *testing.T) {
	store := pricing.NewStore()
	store.ImportFeed([]model.BlockData{*productBlock()})
	ov := model.Overrides{
		model.OverrideStampColors:        map[string]string{"SALE": "#111111"},
		model.OverridePriceCircleOverlay: true,
	}
	pb := placed(ov)
	block := productBlock()

	first := Resolve(pb, block, store, Options{Zoom: 1.5})
	second := Resolve(pb, block, store, Options{Zoom: 1.5})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolve not idempotent:\n%+v\n%+v", first, second)
	}
	if len(pb.Overrides) != 2 || len(block.Feed.Stamps) != 3 {
		t.Fatalf("inputs were mutated")
	}
}

func TestResolveWithoutBlockData(t *testing.T) {
	out := Resolve(placed(model.Overrides{model.OverrideHeadline: "Coming soon"}), nil, nil, Options{Zoom: 4})
	if out.Headline != "Coming soon" || out.Price != nil || !out.Image.Placeholder {
		t.Fatalf("unexpected result %+v", out)
	}
	if out.Zoom != 2 || out.Screen.Width != 400 {
		t.Fatalf("zoom should clamp to 2: %+v", out.Screen)
	}
}

func TestTextLayoutFromZone(t *testing.T) {
	zone := &model.TemplateZone{ID: "z1", TextLayout: "overlay"}
	if got := Resolve(placed(nil), productBlock(), nil, Options{Zone: zone}).TextLayout; got != "overlay" {
		t.Fatalf("zone layout ignored: %s", got)
	}
	if got := Resolve(placed(model.Overrides{model.OverrideTextLayout: "side"}), productBlock(), nil, Options{Zone: zone}).TextLayout; got != "side" {
		t.Fatalf("override layout ignored: %s", got)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		name string
		in   *model.PriceData
		want string
	}{
		{"nil", nil, ""},
		{"each", &model.PriceData{PriceType: model.PriceEach, AdPrice: ptr(1.99)}, "$1.99"},
		{"cents", &model.PriceData{PriceType: model.PriceEach, AdPrice: ptr(0.99)}, "99¢"},
		{"whole", &model.PriceData{PriceType: model.PriceEach, AdPrice: ptr(3.0)}, "$3"},
		{"per lb", &model.PriceData{PriceType: model.PricePerLb, AdPrice: ptr(2.49)}, "$2.49/lb"},
		{"x for y", &model.PriceData{PriceType: model.PriceXForY, AdPrice: ptr(5.0), UnitCount: 2}, "2 for $5"},
		{"bogo", &model.PriceData{PriceType: model.PriceBOGO, AdPrice: ptr(4.0)}, "Buy 1 Get 1 Free"},
		{"pct off", &model.PriceData{PriceType: model.PricePctOff, AdPrice: ptr(0.0), PercentOff: 25}, "25% off"},
		{"display only", &model.PriceData{PriceType: model.PriceBOGO, PriceDisplay: "BOGO"}, "BOGO"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatPrice(tc.in); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestFormatSavings(t *testing.T) {
	if got := FormatSavings(&model.PriceData{AdPrice: ptr(1.99), RegularPrice: ptr(2.99)}); got != "Save $1" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSavings(&model.PriceData{SavingsText: "Save big"}); got != "Save big" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSavings(&model.PriceData{AdPrice: ptr(2.99), RegularPrice: ptr(2.99)}); got != "" {
		t.Fatalf("got %q", got)
	}
}
