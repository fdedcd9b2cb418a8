package extract

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserImageFetcher renders a listing page in headless Chrome and reads its
// main image out of the live DOM. Last resort for sites whose static HTML
// carries nothing useful; enabled by config because it is expensive.
type BrowserImageFetcher struct {
	timeout time.Duration
	ctxPool sync.Pool
}

func NewBrowserImageFetcher(timeout time.Duration) *BrowserImageFetcher {
	f := &BrowserImageFetcher{timeout: timeout}
	f.ctxPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", ""),
			chromedp.Flag("disable-dev-shm-usage", ""),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return f
}

const mainImageJS = `(() => {
	const og = document.querySelector('meta[property="og:image"]');
	if (og && og.content) return og.content;
	const img = document.querySelector('main img, article img, img');
	return img ? img.src : "";
})()`

// Fetch navigates to the page and returns its main image URL, or the empty
// string when the rendered DOM has no image either.
func (f *BrowserImageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	allocCtx := f.ctxPool.Get().(context.Context)
	defer f.ctxPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, f.timeout)
	defer timeoutCancel()

	// chromedp contexts chain from the allocator, not the caller; relay the
	// caller's cancellation manually.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var imageURL string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Evaluate(mainImageJS, &imageURL),
	)
	if err != nil {
		return "", err
	}
	return imageURL, nil
}
