package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adBuilder/internal/errcode"
	"adBuilder/internal/export"
	"adBuilder/internal/storage"
)

const printURLTTL = 30 * time.Minute

type PrintWarning struct {
	Code        int      `json:"code"`
	Message     string   `json:"message"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

// PrintData 是 worker 拉取并注入到前端打印页的 JSON 数据结构。
// warnings 为可选附加字段。
type PrintData struct {
	export.Payload
	Warnings []PrintWarning `json:"warnings,omitempty"`
}

type RemovedImage struct {
	BlockID string
	Key     string
	Reason  string
}

func LogRemovedImages(log *slog.Logger, removed []RemovedImage) {
	for _, r := range removed {
		log.Warn("print image removed",
			slog.String("block_id", r.BlockID),
			slog.String("object_key", r.Key),
			slog.String("reason", r.Reason),
		)
	}
}

type printObjects interface {
	StatObject(ctx context.Context, objectKey string) (storage.ObjectMeta, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// BuildPrintData 把导出载荷中的对象键替换为浏览器可加载的预签名链接。
// 约定：
// - 对象不存在(NoSuchKey)或键不属于该广告 => 图片改为占位，并记录 warning(4004)
// - Bucket 不存在(NoSuchBucket) => 视为系统错误，直接返回 error
// - http(s)/data 链接原样保留
func BuildPrintData(ctx context.Context, objects printObjects, payload export.Payload) (PrintData, []RemovedImage, error) {
	data := PrintData{Payload: payload}
	var removed []RemovedImage
	resolved := make(map[string]string)

	resolve := func(blockID, key string) (string, bool, error) {
		if url, ok := resolved[key]; ok {
			return url, url != "", nil
		}
		if !isBlockAssetKeyFor(payload.AdID, key) {
			removed = append(removed, RemovedImage{BlockID: blockID, Key: key, Reason: "image object key 格式不合法"})
			resolved[key] = ""
			return "", false, nil
		}
		if _, err := objects.StatObject(ctx, key); err != nil {
			if storage.IsNoSuchBucket(err) {
				return "", false, fmt.Errorf("minio bucket does not exist: %w", err)
			}
			if storage.IsNoSuchKey(err) {
				removed = append(removed, RemovedImage{BlockID: blockID, Key: key, Reason: "image object 不存在"})
				resolved[key] = ""
				return "", false, nil
			}
			return "", false, fmt.Errorf("stat image: %w", err)
		}
		url, err := objects.GeneratePresignedURL(ctx, key, printURLTTL)
		if err != nil {
			return "", false, err
		}
		resolved[key] = url
		return url, true, nil
	}

	data.Pages = append([]export.Page(nil), payload.Pages...)
	for pi := range data.Pages {
		page := &data.Pages[pi]
		if page.Template != nil {
			layers := append(page.Template.BackgroundLayers[:0:0], page.Template.BackgroundLayers...)
			for li := range layers {
				ref := strings.TrimSpace(layers[li].ImageURL)
				if ref == "" || !isObjectKeyRef(ref) {
					continue
				}
				url, ok, err := resolve(page.ID, ref)
				if err != nil {
					return PrintData{}, removed, err
				}
				if !ok {
					url = ""
				}
				layers[li].ImageURL = url
			}
			tpl := *page.Template
			tpl.BackgroundLayers = layers
			page.Template = &tpl
		}
		blocks := append(page.Blocks[:0:0], page.Blocks...)
		for bi := range blocks {
			img := &blocks[bi].Image
			if img.URL == nil {
				continue
			}
			ref := strings.TrimSpace(*img.URL)
			if !isObjectKeyRef(ref) {
				continue
			}
			url, ok, err := resolve(blocks[bi].ID, ref)
			if err != nil {
				return PrintData{}, removed, err
			}
			if !ok {
				img.URL = nil
				img.Placeholder = true
				continue
			}
			img.URL = &url
		}
		page.Blocks = blocks
	}

	if len(removed) > 0 {
		uniq := make(map[string]struct{}, len(removed))
		keys := make([]string, 0, len(removed))
		for _, r := range removed {
			k := strings.TrimSpace(r.Key)
			if k == "" {
				continue
			}
			if _, ok := uniq[k]; ok {
				continue
			}
			uniq[k] = struct{}{}
			keys = append(keys, k)
		}
		data.Warnings = append(data.Warnings, PrintWarning{
			Code:        errcode.ResourceMissing,
			Message:     "部分图片资源缺失/无效，已改为占位图并继续生成",
			MissingKeys: keys,
		})
	}
	return data, removed, nil
}
