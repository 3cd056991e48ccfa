package api

import (
	"strings"
	"unicode/utf8"

	"adBuilder/internal/storage"
)

var allowedAssetExts = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// parseBlockAssetKey 校验 block-assets/<adID>/<name>.<ext> 形式的对象键并返回 adID。
func parseBlockAssetKey(key string) (string, bool) {
	if key == "" || len(key) > 200 || !utf8.ValidString(key) {
		return "", false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return "", false
	}
	rest, ok := strings.CutPrefix(key, storage.BlockAssetPrefix+"/")
	if !ok {
		return "", false
	}
	adID, name, ok := strings.Cut(rest, "/")
	if !ok || adID == "" || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	lower := strings.ToLower(name)
	if !(strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".webp")) {
		return "", false
	}
	return adID, true
}

// isBlockAssetKeyFor 判断 key 是否为属于 adID 的合法资产键。
func isBlockAssetKeyFor(adID, key string) bool {
	owner, ok := parseBlockAssetKey(key)
	return ok && owner == adID
}

// isObjectKeyRef 区分对象键与外部 URL（http/https/data）。
func isObjectKeyRef(ref string) bool {
	lower := strings.ToLower(ref)
	return !(strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:"))
}
