// Package pdf 通过 go-rod 驱动的无头 Chromium，把服务端生成的 HTML 渲染成 PDF 或 JPEG。
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultReadySelector 所有图片加载完成或失败后页面会插入的元素。
const DefaultReadySelector = "#pdf-render-ready"

// Options 单次渲染的参数。
type Options struct {
	// 截图前等待的选择器，为空时使用 DefaultReadySelector
	ReadySelector string
	// 等待 ReadySelector 的上限，超时后照常截图
	ReadyTimeout time.Duration
	// 纸张尺寸（英寸），0 表示使用 Chromium 默认值
	PaperWidth  float64
	PaperHeight float64
	Logger      *slog.Logger
}

func (o Options) selector() string {
	if o.ReadySelector == "" {
		return DefaultReadySelector
	}
	return o.ReadySelector
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// GeneratePDFFromHTML 使用 go-rod 在无头浏览器中渲染 HTML 并返回 PDF 字节。
func GeneratePDFFromHTML(ctx context.Context, htmlContent string, opts Options) ([]byte, error) {
	var data []byte
	err := withPage(ctx, htmlContent, opts, func(page *rod.Page) error {
		params := &proto.PagePrintToPDF{
			PrintBackground:   true,
			PreferCSSPageSize: true,
		}
		if opts.PaperWidth > 0 && opts.PaperHeight > 0 {
			params.PaperWidth = &opts.PaperWidth
			params.PaperHeight = &opts.PaperHeight
		}
		reader, err := page.PDF(params)
		if err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
		defer func() {
			_ = reader.Close()
		}()
		data, err = io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("read pdf bytes: %w", err)
		}
		return nil
	})
	return data, err
}

// ScreenshotHTML 渲染 HTML 并截取 selector 对应元素的 JPEG，找不到时截整页。
func ScreenshotHTML(ctx context.Context, htmlContent, selector string, quality int, opts Options) ([]byte, error) {
	var data []byte
	err := withPage(ctx, htmlContent, opts, func(page *rod.Page) error {
		if selector != "" {
			if el, err := page.Timeout(2 * time.Second).Element(selector); err == nil {
				if shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatJpeg, quality); err == nil {
					data = shot
					return nil
				}
			}
		}
		shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
		})
		if err != nil {
			return fmt.Errorf("page screenshot: %w", err)
		}
		data = shot
		return nil
	})
	return data, err
}

func withPage(ctx context.Context, htmlContent string, opts Options, fn func(*rod.Page) error) error {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true)

	if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(60 * time.Second)
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return fmt.Errorf("set document content: %w", err)
	}

	if err := WaitReady(page, opts.selector(), opts.ReadyTimeout, opts.logger()); err != nil {
		return err
	}
	return fn(page)
}

// WaitReady 最多等待 timeout。超时不算错误，按当前页面截图。
func WaitReady(page *rod.Page, selector string, timeout time.Duration, logger *slog.Logger) error {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if _, err := page.Timeout(timeout).Element(selector); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("render ready signal not seen, capturing anyway",
				slog.String("selector", selector),
				slog.Duration("timeout", timeout),
			)
			return nil
		}
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}
