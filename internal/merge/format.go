package merge

import (
	"fmt"
	"math"
	"strconv"

	"adBuilder/internal/model"
)

// FormatPrice 生成主价格文本，只读取与 PriceType 对应的字段。
// 没有促销价时原样显示 PriceDisplay。
func FormatPrice(p *model.PriceData) string {
	if p == nil {
		return ""
	}
	if p.AdPrice == nil {
		return p.PriceDisplay
	}
	amount := *p.AdPrice
	switch p.PriceType {
	case model.PricePerLb:
		return Money(amount) + "/lb"
	case model.PriceXForY:
		if p.UnitCount > 1 {
			return fmt.Sprintf("%d for %s", p.UnitCount, Money(amount))
		}
		return Money(amount)
	case model.PriceBOGO:
		return "Buy 1 Get 1 Free"
	case model.PricePctOff:
		if p.PercentOff > 0 {
			return strconv.FormatFloat(p.PercentOff, 'f', -1, 64) + "% off"
		}
		if p.PriceDisplay != "" {
			return p.PriceDisplay
		}
		return Money(amount)
	default:
		return Money(amount)
	}
}

// FormatSavings 返回节省文案：优先使用 SavingsText，其次是与原价的差额。
func FormatSavings(p *model.PriceData) string {
	if p == nil {
		return ""
	}
	if p.SavingsText != "" {
		return p.SavingsText
	}
	if p.AdPrice == nil || p.RegularPrice == nil || p.PriceType == model.PriceXForY {
		return ""
	}
	diff := *p.RegularPrice - *p.AdPrice
	if diff <= 0.004 {
		return ""
	}
	return "Save " + Money(diff)
}

// Money 格式化金额，不足一美元时用美分表示。
func Money(amount float64) string {
	cents := int64(math.Round(amount * 100))
	switch {
	case cents < 0:
		return "-" + Money(-amount)
	case cents < 100:
		return fmt.Sprintf("%d¢", cents)
	case cents%100 == 0:
		return fmt.Sprintf("$%d", cents/100)
	default:
		return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
	}
}
