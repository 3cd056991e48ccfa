package worker

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
	"time"

	"adBuilder/internal/merge"
	"adBuilder/internal/model"
)

var safeColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\([0-9.,\s%]+\))$`)

func color(c, fallback string) string {
	c = strings.TrimSpace(c)
	if safeColor.MatchString(c) {
		return c
	}
	return fallback
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "px"
}

func layerStyle(l model.BackgroundLayer) template.CSS {
	c0, c1 := "#FFFFFF", "#FFFFFF"
	if len(l.Colors) > 0 {
		c0 = color(l.Colors[0], c0)
		c1 = c0
	}
	if len(l.Colors) > 1 {
		c1 = color(l.Colors[1], c1)
	}
	angle := strconv.FormatFloat(l.Angle, 'f', 0, 64) + "deg"

	var bg string
	switch l.Kind {
	case "gradient":
		bg = fmt.Sprintf("background: linear-gradient(%s, %s, %s);", angle, c0, c1)
	case "diagonal_split":
		bg = fmt.Sprintf("background: linear-gradient(%s, %s 50%%, %s 50%%);", angle, c0, c1)
	case "wave":
		bg = fmt.Sprintf("background: radial-gradient(ellipse 120%% 60%% at 50%% 100%%, %s 0 50%%, %s 51%%);", c1, c0)
	case "full_bleed_image":
		// 图片以 <img> 绘制，这里只给底色
		bg = fmt.Sprintf("background: %s;", c0)
	default:
		bg = fmt.Sprintf("background: %s;", c0)
	}
	return template.CSS(fmt.Sprintf("%s z-index: %d;", bg, l.ZIndex))
}

func blockStyle(b merge.RenderableBlock) template.CSS {
	return template.CSS(fmt.Sprintf(
		"left: %s; top: %s; width: %s; height: %s; z-index: %d; background: %s; color: %s;",
		px(b.Rect.X), px(b.Rect.Y), px(b.Rect.Width), px(b.Rect.Height), 100+b.ZIndex,
		color(b.BackgroundColor, "#FFFFFF"), color(b.TextColor, "#1A1A1A"),
	))
}

func stampStyle(s merge.Stamp) template.CSS {
	radius := "4px"
	if s.Shape == "circle" || s.Shape == "starburst" {
		radius = "50%"
	}
	return template.CSS(fmt.Sprintf(
		"width: %s; height: %s; background: %s; border-radius: %s;",
		px(s.Size), px(s.Size), color(s.Color, "#C8102E"), radius,
	))
}

func circleStyle(c *merge.PriceCircle) template.CSS {
	if c == nil {
		return ""
	}
	return template.CSS(fmt.Sprintf(
		"width: %s; height: %s; left: %.2f%%; top: %.2f%%;",
		px(c.Size), px(c.Size), c.XPercent, c.YPercent,
	))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func priceLabel(b merge.RenderableBlock) string {
	if b.PriceText != "" {
		return b.PriceText
	}
	if b.Price != nil {
		return b.Price.Display
	}
	return ""
}

var printTemplate = template.Must(template.New("ad").Funcs(template.FuncMap{
	"px":          px,
	"layerStyle":  layerStyle,
	"blockStyle":  blockStyle,
	"stampStyle":  stampStyle,
	"circleStyle": circleStyle,
	"priceLabel":  priceLabel,
	"color":       color,
	"deref":       deref,
}).Parse(printTemplateString))

// renderPrintHTML 把导出数据渲染成可直接打印的 HTML，所有坐标使用设计单位（1 单位 = 1 CSS px）。
func renderPrintHTML(data PrintData, readyTimeout time.Duration) (string, error) {
	if readyTimeout <= 0 {
		readyTimeout = 8 * time.Second
	}
	doc := printDocument{
		Title:          data.Name,
		Pages:          data.Pages,
		ReadyTimeoutMs: readyTimeout.Milliseconds(),
	}
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("execute print template: %w", err)
	}
	return buf.String(), nil
}

const printTemplateString = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  @page { margin: 0; }
  * { -webkit-print-color-adjust: exact; print-color-adjust: exact; box-sizing: border-box; }
  html, body { margin: 0; padding: 0; background: white; font-family: 'Helvetica Neue', Arial, sans-serif; }
  .ad-page { position: relative; overflow: hidden; page-break-after: always; break-after: page; }
  .ad-page:last-child { page-break-after: auto; break-after: auto; }
  .layer { position: absolute; inset: 0; }
  .layer img { width: 100%; height: 100%; object-fit: cover; }
  .block { position: absolute; overflow: hidden; display: flex; flex-direction: column; padding: 6px; }
  .block.side-by-side { flex-direction: row; }
  .block .media { flex: 1 1 auto; min-height: 0; display: flex; align-items: center; justify-content: center; }
  .block .media img { max-width: 100%; max-height: 100%; object-fit: contain; }
  .block .placeholder { width: 100%; height: 100%; background: #EEEEEE; }
  .block .text { flex: 0 0 auto; }
  .headline { font-weight: 700; font-size: 18px; line-height: 1.1; }
  .name { font-size: 13px; }
  .description { font-size: 11px; }
  .disclaimer { font-size: 8px; opacity: 0.8; }
  .price { font-weight: 800; font-size: 26px; }
  .savings { font-size: 11px; font-weight: 600; }
  .sale_band .headline { font-size: 24px; text-transform: uppercase; }
  .stamps { position: absolute; top: 4px; right: 4px; display: flex; gap: 4px; }
  .stamp { display: flex; align-items: center; justify-content: center; color: white; font-size: 10px; font-weight: 700; text-align: center; }
  .price-circle { position: absolute; transform: translate(-50%, -50%); border-radius: 50%; background: #C8102E; color: white; display: flex; align-items: center; justify-content: center; font-weight: 800; text-align: center; }
</style>
</head>
<body>
{{range .Pages}}
<div class="ad-page" id="ad-page-{{.Number}}" style="width: {{px .Canvas.Width}}; height: {{px .Canvas.Height}};">
  {{with .Template}}{{range .BackgroundLayers}}
  <div class="layer" style="{{layerStyle .}}">{{if and (eq .Kind "full_bleed_image") .ImageURL}}<img src="{{.ImageURL}}" alt="">{{end}}</div>
  {{end}}{{end}}
  {{range $b := .Blocks}}
  <div class="block {{.DisplayMode}} {{.TextLayout}}" style="{{blockStyle .}}">
    {{if ne .DisplayMode "text_only"}}
    <div class="media">
      {{if .Image.URL}}<img src="{{deref .Image.URL}}" alt="{{.ProductName}}">{{else}}<div class="placeholder"></div>{{end}}
    </div>
    {{end}}
    <div class="text">
      {{if .Headline}}<div class="headline">{{.Headline}}</div>{{end}}
      {{if .ProductName}}<div class="name">{{.ProductName}}</div>{{end}}
      {{if .Description}}<div class="description">{{.Description}}</div>{{end}}
      {{if not .PriceCircle}}{{with priceLabel .}}<div class="price">{{.}}</div>{{end}}{{end}}
      {{with .Price}}{{if .Savings}}<div class="savings">{{.Savings}}</div>{{end}}{{end}}
      {{if .Disclaimer}}<div class="disclaimer">{{.Disclaimer}}</div>{{end}}
    </div>
    {{if .Stamps}}<div class="stamps">{{range .Stamps}}<div class="stamp" style="{{stampStyle .}}">{{.Text}}</div>{{end}}</div>{{end}}
    {{with .PriceCircle}}<div class="price-circle" style="{{circleStyle .}}">{{priceLabel $b}}</div>{{end}}
  </div>
  {{end}}
</div>
{{end}}
<script>
(function () {
  var done = false;
  function ready() {
    if (done) { return; }
    done = true;
    var marker = document.createElement('div');
    marker.id = 'pdf-render-ready';
    marker.style.display = 'none';
    document.body.appendChild(marker);
  }
  var images = Array.prototype.slice.call(document.images);
  var pending = images.length;
  function settle() { pending -= 1; if (pending <= 0) { ready(); } }
  if (pending === 0) { ready(); return; }
  images.forEach(function (img) {
    if (img.complete) { settle(); return; }
    img.addEventListener('load', settle);
    img.addEventListener('error', settle);
  });
  setTimeout(ready, {{.ReadyTimeoutMs}});
})();
</script>
</body>
</html>
`
