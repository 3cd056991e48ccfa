package model

// 合并逻辑识别的覆盖项键
const (
	OverrideDisplayMode        = "displayMode"
	OverrideHeadline           = "headline"
	OverrideDescription        = "description"
	OverrideDisclaimer         = "disclaimer"
	OverrideStamps             = "stamps"
	OverrideActiveImage        = "activeImage"
	OverridePriceCircleOverlay = "priceCircleOverlay"
	OverridePriceScale         = "priceScale"
	OverridePriceX             = "priceX"
	OverridePriceY             = "priceY"
	OverridePriceText          = "priceText"
	OverrideStampColors        = "stampColors"
	OverrideStampShapes        = "stampShapes"
	OverrideStampSizes         = "stampSizes"
	OverrideStampTexts         = "stampTexts"
	OverrideBackgroundColor    = "backgroundColor"
	OverrideTextColor          = "textColor"
	OverrideTextLayout         = "textLayout"
)

// Overrides 是单个区块的稀疏覆盖项。值遵循 JSON 解码后的类型
// （string、float64、bool、[]any、map[string]any），Go 代码里也可以直接用
// []string、map[string]string 和各种数值类型。
type Overrides map[string]any

// Merge 返回应用 patch 后的新 map。按键整体替换，嵌套 map 不做合并。
func (o Overrides) Merge(patch Overrides) Overrides {
	out := make(Overrides, len(o)+len(patch))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone 浅拷贝。
func (o Overrides) Clone() Overrides {
	if o == nil {
		return nil
	}
	return o.Merge(nil)
}

// Has 判断 key 存在且值非 nil。
func (o Overrides) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

func (o Overrides) String(key string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return ""
}

func (o Overrides) Bool(key string) bool {
	b, ok := o[key].(bool)
	return ok && b
}

func (o Overrides) Float(key string) (float64, bool) {
	return toFloat(o[key])
}

// Strings 把值转成字符串列表。
func (o Overrides) Strings(key string) ([]string, bool) {
	switch v := o[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func (o Overrides) StringMap(key string) map[string]string {
	switch v := o[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

func (o Overrides) FloatMap(key string) map[string]float64 {
	switch v := o[key].(type) {
	case map[string]float64:
		return v
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, item := range v {
			if f, ok := toFloat(item); ok {
				out[k] = f
			}
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
