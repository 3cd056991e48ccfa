package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// printClient 从 API 的内部打印接口拉取导出数据。
// 只允许 Worker 通过 Header 携带 INTERNAL_API_SECRET 访问。
type printClient struct {
	baseURL string
	secret  string
	http    *http.Client
}

func newPrintClient(baseURL, secret string) *printClient {
	return &printClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		secret:  strings.TrimSpace(secret),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// fetch 返回 adID 在 region、zoom 下的原始 JSON。带 exportID 时接口返回入队时冻结的快照。
func (p *printClient) fetch(ctx context.Context, adID, exportID, region string, zoom float64, correlationID string) ([]byte, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("internal api secret missing")
	}
	if p.baseURL == "" {
		return nil, fmt.Errorf("internal api base url missing")
	}

	q := url.Values{}
	if exportID != "" {
		q.Set("exportId", exportID)
	}
	if region != "" {
		q.Set("region", region)
	}
	if zoom > 0 {
		q.Set("zoom", strconv.FormatFloat(zoom, 'f', -1, 64))
	}
	targetURL := fmt.Sprintf("%s/v1/internal/ads/%s/print", p.baseURL, url.PathEscape(adID))
	if len(q) > 0 {
		targetURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build internal request: %w", err)
	}
	req.Header.Set("X-Internal-Secret", p.secret)
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request internal print data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("internal print data status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read internal print data: %w", err)
	}
	return data, nil
}

// buildPrintDataInjectionScript 构造在浏览器里注入 window.__PRINT_DATA__ 的脚本。
// 通过 JSON.parse + Go 的 Quote 来保证脚本安全。
func buildPrintDataInjectionScript(data []byte) string {
	quoted := strconv.Quote(string(data))
	return fmt.Sprintf(`() => { window.__PRINT_DATA__ = JSON.parse(%s); }`, quoted)
}
