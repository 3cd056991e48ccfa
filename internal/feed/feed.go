// Package feed 把 JSON 或 XML 格式的 feed 转成校验过的 BlockData。
// 两种格式都先归一化成相同的通用记录。
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"adBuilder/internal/model"
)

var (
	ErrUnsupportedFormat = errors.New("feed: unsupported format")
	ErrInvalidBlock      = errors.New("feed: invalid block")
)

// Parse 支持的格式
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Record 是归一化后的单条区块记录。
type Record map[string]any

var strict = bluemonday.StrictPolicy()

// DetectFormat 先根据 content type 或文件名判断格式，再看第一个有效字节。
func DetectFormat(hint string, data []byte) string {
	h := strings.ToLower(hint)
	switch {
	case strings.Contains(h, "xml"):
		return FormatXML
	case strings.Contains(h, "json"):
		return FormatJSON
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '<':
		return FormatXML
	case '[', '{':
		return FormatJSON
	}
	return ""
}

// Parse 读取整个 feed 并返回区块。hint 是 content type 或文件名，可为空。
func Parse(r io.Reader, hint string) ([]model.BlockData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	var records []Record
	switch DetectFormat(hint, data) {
	case FormatJSON:
		records, err = NormalizeJSON(data)
	case FormatXML:
		records, err = NormalizeXML(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return Build(records)
}

// NormalizeJSON 接受数组、{"blocks": [...]} 或单个对象。
func NormalizeJSON(data []byte) ([]Record, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json feed: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		if list, ok := v["blocks"].([]any); ok {
			items = list
		} else {
			items = []any{v}
		}
	default:
		return nil, fmt.Errorf("%w: json feed must be an array or object", ErrUnsupportedFormat)
	}

	out := make([]Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrInvalidBlock, i)
		}
		out = append(out, Record(m))
	}
	return out, nil
}

// Build 校验记录并转换为 BlockData。
func Build(records []Record) ([]model.BlockData, error) {
	out := make([]model.BlockData, 0, len(records))
	for i, rec := range records {
		b, err := toBlock(rec)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Validate 检查区块进入文档前必须具备的字段。
func Validate(b model.BlockData) error {
	switch b.BlockType {
	case model.BlockTypeProduct:
		if strings.TrimSpace(b.Feed.ProductName) == "" {
			return fmt.Errorf("%w: product name is required", ErrInvalidBlock)
		}
	case model.BlockTypePromotional:
		if b.Feed.Headline == "" && b.Feed.PriceText == "" && b.Feed.ProductName == "" {
			return fmt.Errorf("%w: promotional block needs a headline or price text", ErrInvalidBlock)
		}
	default:
		return fmt.Errorf("%w: unknown block type %q", ErrInvalidBlock, b.BlockType)
	}
	if b.Feed.ValidFrom != nil && b.Feed.ValidTo != nil && b.Feed.ValidTo.Before(*b.Feed.ValidFrom) {
		return fmt.Errorf("%w: validTo is before validFrom", ErrInvalidBlock)
	}
	return nil
}

// Sanitize 去掉所有文本字段中的标记。
func Sanitize(b model.BlockData) model.BlockData {
	f := &b.Feed
	f.ProductName = clean(f.ProductName)
	f.Brand = clean(f.Brand)
	f.Category = clean(f.Category)
	f.Headline = clean(f.Headline)
	f.Description = clean(f.Description)
	f.Disclaimer = clean(f.Disclaimer)
	f.PriceText = clean(f.PriceText)
	if f.Price != nil {
		p := *f.Price
		p.SavingsText = clean(p.SavingsText)
		p.PriceDisplay = clean(p.PriceDisplay)
		f.Price = &p
	}
	if len(f.Stamps) > 0 {
		stamps := make([]string, 0, len(f.Stamps))
		for _, s := range f.Stamps {
			if s = clean(s); s != "" {
				stamps = append(stamps, s)
			}
		}
		f.Stamps = stamps
	}
	return b
}

func clean(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

func toBlock(rec Record) (model.BlockData, error) {
	r := fold(rec)
	// 部分上游把内容包在 feedJson 里
	if inner, ok := r["feedjson"].(map[string]any); ok {
		merged := fold(inner)
		for k, v := range r {
			if _, exists := merged[k]; !exists && k != "feedjson" {
				merged[k] = v
			}
		}
		r = merged
	}

	b := model.BlockData{
		ID:        str(first(r, "blockid", "id")),
		UPC:       str(r["upc"]),
		BlockType: strings.ToLower(str(first(r, "blocktype", "type"))),
	}
	f := &b.Feed
	f.ProductName = str(first(r, "productname", "name"))
	f.Brand = str(r["brand"])
	f.Category = str(r["category"])
	f.Headline = str(r["headline"])
	f.Description = str(r["description"])
	f.Disclaimer = str(r["disclaimer"])
	f.PriceText = str(r["pricetext"])
	f.Region = str(r["region"])
	f.Stamps = strList(r["stamps"], "stamp")

	if imgs, ok := r["images"].(map[string]any); ok {
		im := fold(imgs)
		f.Images.Product = optStr(im["product"])
		f.Images.Lifestyle = optStr(im["lifestyle"])
	}
	if v := optStr(r["productimage"]); v != nil && f.Images.Product == nil {
		f.Images.Product = v
	}
	if v := optStr(r["lifestyleimage"]); v != nil && f.Images.Lifestyle == nil {
		f.Images.Lifestyle = v
	}

	price, err := toPrice(r["price"])
	if err != nil {
		return b, err
	}
	f.Price = price

	if f.ValidFrom, err = optTime(r["validfrom"]); err != nil {
		return b, err
	}
	if f.ValidTo, err = optTime(r["validto"]); err != nil {
		return b, err
	}

	if b.BlockType == "" {
		if b.UPC != "" || f.Price != nil {
			b.BlockType = model.BlockTypeProduct
		} else {
			b.BlockType = model.BlockTypePromotional
		}
	}

	b = Sanitize(b)
	if err := Validate(b); err != nil {
		return b, err
	}
	return b, nil
}

func toPrice(v any) (*model.PriceData, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		// 单独的数字或字符串按 each 处理
		amount, isNum := num(v)
		if isNum {
			return &model.PriceData{PriceType: model.PriceEach, AdPrice: &amount}, nil
		}
		if s := str(v); s != "" {
			return &model.PriceData{PriceType: model.PriceEach, PriceDisplay: s}, nil
		}
		return nil, nil
	}
	r := fold(m)
	p := &model.PriceData{
		PriceType:    model.PriceType(strings.ToLower(str(first(r, "pricetype", "type")))),
		SavingsText:  str(r["savingstext"]),
		PriceDisplay: str(first(r, "pricedisplay", "display")),
	}
	switch p.PriceType {
	case "":
		p.PriceType = model.PriceEach
	case model.PriceEach, model.PricePerLb, model.PriceXForY, model.PriceBOGO, model.PricePctOff:
	default:
		return nil, fmt.Errorf("%w: unknown price type %q", ErrInvalidBlock, p.PriceType)
	}
	if f, ok := num(r["adprice"]); ok {
		p.AdPrice = &f
	}
	if f, ok := num(r["regularprice"]); ok {
		p.RegularPrice = &f
	}
	if f, ok := num(r["unitcount"]); ok {
		p.UnitCount = int(f)
	}
	if f, ok := num(r["percentoff"]); ok {
		p.PercentOff = f
	}
	return p, nil
}

// fold 把键转小写并去掉分隔符，productName、product_name、ProductName 视为同一个键。
func fold(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(k))
		out[key] = v
	}
	return out
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func optStr(v any) *string {
	s := str(v)
	if s == "" {
		return nil
	}
	return &s
}

func num(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(n), "$"))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// strList 接受列表、逗号分隔字符串，或 XML 产生的 {"stamp": [...]} 包装对象。
func strList(v any, itemKey string) []string {
	switch l := v.(type) {
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return l
	case string:
		var out []string
		for _, part := range strings.Split(l, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		if inner, ok := fold(l)[itemKey]; ok {
			return strList(inner, itemKey)
		}
	}
	return nil
}

func optTime(v any) (*time.Time, error) {
	s := str(v)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: bad date %q", ErrInvalidBlock, s)
}
