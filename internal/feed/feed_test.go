package feed

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"adBuilder/internal/model"
)

const jsonFeed = `[
  {
    "upc": "A",
    "productName": "Honeycrisp <b>Apples</b>",
    "brand": "Orchard Co",
    "price": {"priceType": "per_lb", "adPrice": 1.99, "regularPrice": "2.49"},
    "images": {"product": "https://img/a.png", "lifestyle": null},
    "stamps": ["SALE", "LOCAL"],
    "validFrom": "2024-05-01",
    "validTo": "2024-05-07"
  },
  {
    "blockType": "promotional",
    "headline": "Digital Deals",
    "priceText": "$1 Digital Deals"
  }
]`

const xmlFeed = `<?xml version="1.0"?>
<blocks>
  <block>
    <upc>A</upc>
    <productName>Honeycrisp &lt;b&gt;Apples&lt;/b&gt;</productName>
    <brand>Orchard Co</brand>
    <price>
      <priceType>per_lb</priceType>
      <adPrice>1.99</adPrice>
      <regularPrice>2.49</regularPrice>
    </price>
    <images><product>https://img/a.png</product></images>
    <stamps><stamp>SALE</stamp><stamp>LOCAL</stamp></stamps>
    <validFrom>2024-05-01</validFrom>
    <validTo>2024-05-07</validTo>
  </block>
  <block>
    <blockType>promotional</blockType>
    <headline>Digital Deals</headline>
    <priceText>$1 Digital Deals</priceText>
  </block>
</blocks>`

func TestJSONAndXMLNormalizeTheSame(t *testing.T) {
	fromJSON, err := Parse(strings.NewReader(jsonFeed), "application/json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	fromXML, err := Parse(strings.NewReader(xmlFeed), "")
	if err != nil {
		t.Fatalf("xml: %v", err)
	}
	if !reflect.DeepEqual(fromJSON, fromXML) {
		t.Fatalf("formats disagree:\njson %+v\nxml  %+v", fromJSON, fromXML)
	}

	a := fromJSON[0]
	if a.BlockType != model.BlockTypeProduct || a.Feed.ProductName != "Honeycrisp Apples" {
		t.Fatalf("unexpected first block %+v", a)
	}
	if a.Feed.Price == nil || *a.Feed.Price.AdPrice != 1.99 || *a.Feed.Price.RegularPrice != 2.49 {
		t.Fatalf("price not parsed: %+v", a.Feed.Price)
	}
	if len(a.Feed.Stamps) != 2 || a.Feed.Images.Product == nil || a.Feed.Images.Lifestyle != nil {
		t.Fatalf("stamps/images: %+v", a.Feed)
	}
	if fromJSON[1].BlockType != model.BlockTypePromotional || fromJSON[1].Feed.PriceText != "$1 Digital Deals" {
		t.Fatalf("promo block %+v", fromJSON[1])
	}
}

func TestBareBlockXML(t *testing.T) {
	blocks, err := Parse(strings.NewReader(`<block upc="B"><productName>Milk</productName><stamps><stamp>NEW</stamp></stamps><price>3.49</price></block>`), "feed.xml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(blocks) != 1 || blocks[0].UPC != "B" || blocks[0].Feed.ProductName != "Milk" {
		t.Fatalf("unexpected %+v", blocks)
	}
	if len(blocks[0].Feed.Stamps) != 1 || blocks[0].Feed.Stamps[0] != "NEW" {
		t.Fatalf("single stamp should still be a list: %+v", blocks[0].Feed.Stamps)
	}
	if p := blocks[0].Feed.Price; p == nil || p.PriceType != model.PriceEach || *p.AdPrice != 3.49 {
		t.Fatalf("bare price: %+v", p)
	}
}

func TestJSONObjectWrapper(t *testing.T) {
	blocks, err := Parse(strings.NewReader(`{"blocks":[{"upc":"C","product_name":"Eggs","feedJson":{"headline":"Farm fresh"}}]}`), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if blocks[0].Feed.ProductName != "Eggs" || blocks[0].Feed.Headline != "Farm fresh" {
		t.Fatalf("unexpected %+v", blocks[0])
	}
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"missing product name": `[{"upc":"A","price":{"adPrice":1}}]`,
		"empty promotional":    `[{"blockType":"promotional"}]`,
		"bad price type":       `[{"upc":"A","productName":"x","price":{"priceType":"free"}}]`,
		"bad date":             `[{"upc":"A","productName":"x","validFrom":"soon"}]`,
		"inverted window":      `[{"upc":"A","productName":"x","validFrom":"2024-05-07","validTo":"2024-05-01"}]`,
		"unknown type":         `[{"blockType":"coupon","headline":"x"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(body), "json")
			if !errors.Is(err, ErrInvalidBlock) {
				t.Fatalf("expected ErrInvalidBlock, got %v", err)
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := Parse(strings.NewReader("upc,name\nA,Apples"), "text/csv"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Parse(strings.NewReader(""), ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for empty input, got %v", err)
	}
}

func TestSanitizeStripsMarkup(t *testing.T) {
	b := Sanitize(model.BlockData{Feed: model.FeedPayload{
		Headline: `<script>alert(1)</script>Big &amp; Bold`,
		Stamps:   []string{"<i>SALE</i>", "<br>"},
	}})
	if b.Feed.Headline != "Big & Bold" {
		t.Fatalf("headline %q", b.Feed.Headline)
	}
	if len(b.Feed.Stamps) != 1 || b.Feed.Stamps[0] != "SALE" {
		t.Fatalf("stamps %+v", b.Feed.Stamps)
	}
}
