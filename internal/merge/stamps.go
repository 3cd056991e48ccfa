package merge

import "strings"

// StampDefault 是某类角标的默认外观。
type StampDefault struct {
	Color string `json:"color"`
	Text  string `json:"text"`
	Shape string `json:"shape"`
}

// DefaultStampSize 角标直径，设计单位。
const DefaultStampSize = 64.0

// MaxRenderedStamps 各展示模式最多绘制的角标数。
const MaxRenderedStamps = 2

var stampDefaults = map[string]StampDefault{
	"SALE":           {Color: "#C8102E", Text: "SALE", Shape: "burst"},
	"BOGO":           {Color: "#E35205", Text: "BUY 1 GET 1", Shape: "burst"},
	"NEW":            {Color: "#00843D", Text: "NEW!", Shape: "circle"},
	"DIGITAL_COUPON": {Color: "#0057B8", Text: "DIGITAL COUPON", Shape: "ribbon"},
	"ORGANIC":        {Color: "#4A7729", Text: "ORGANIC", Shape: "leaf"},
	"LOCAL":          {Color: "#7A4A2A", Text: "LOCAL", Shape: "circle"},
	"LIMITED_TIME":   {Color: "#6D2077", Text: "LIMITED TIME", Shape: "ribbon"},
	"FRESH":          {Color: "#009A44", Text: "FRESH", Shape: "circle"},
}

// StampDefaultFor 返回角标类型的默认配置，未知类型使用以类型名为文字的红色圆形。
func StampDefaultFor(stampType string) StampDefault {
	if d, ok := stampDefaults[strings.ToUpper(stampType)]; ok {
		return d
	}
	return StampDefault{
		Color: "#C8102E",
		Text:  strings.ReplaceAll(strings.ToUpper(stampType), "_", " "),
		Shape: "circle",
	}
}
