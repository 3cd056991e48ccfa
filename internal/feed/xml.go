package feed

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// NormalizeXML 接受 <blocks><block>...</block></blocks> 或单个 <block>。
// 子元素成为记录字段，重复出现的元素名变成列表。
func NormalizeXML(r io.Reader) ([]Record, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse xml feed: %w", err)
	}
	nodes := xmlquery.Find(doc, "//block")
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no <block> elements", ErrInvalidBlock)
	}

	out := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		rec, ok := elementValue(n).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: <block> has no fields", ErrInvalidBlock)
		}
		out = append(out, Record(rec))
	}
	return out, nil
}

// elementValue 叶子元素转成字符串，否则转成子元素与属性组成的 map。
func elementValue(n *xmlquery.Node) any {
	fields := map[string]any{}
	for _, a := range n.Attr {
		fields[a.Name.Local] = a.Value
	}

	hasChildren := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		hasChildren = true
		v := elementValue(c)
		switch existing := fields[c.Data].(type) {
		case nil:
			fields[c.Data] = v
		case []any:
			fields[c.Data] = append(existing, v)
		default:
			fields[c.Data] = []any{existing, v}
		}
	}

	if !hasChildren {
		text := strings.TrimSpace(n.InnerText())
		if len(fields) == 0 {
			return text
		}
		if text != "" {
			fields["value"] = text
		}
	}
	// <stamps> 只有一个子元素时也当作列表
	if plural := n.Data; strings.HasSuffix(plural, "s") {
		if single, ok := fields[strings.TrimSuffix(plural, "s")]; ok && len(fields) == 1 {
			if _, isList := single.([]any); !isList {
				return []any{single}
			}
			return single
		}
	}
	return fields
}
