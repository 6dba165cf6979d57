package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer renders JavaScript-heavy pages in headless Chrome.
type ChromeRenderer struct {
	settle time.Duration
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer builds a renderer that waits settle after the body is ready.
func NewChromeRenderer(settle time.Duration) *ChromeRenderer {
	return &ChromeRenderer{settle: settle}
}

// Render navigates to pageURL and returns the outer HTML of the document.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL, userAgent string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("headless", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	return []byte(html), nil
}
