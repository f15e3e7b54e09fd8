package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Page is one browser tab. It implements dom.Executor.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	closeOnce sync.Once
	onClose   func()
}

func newPage(ctx context.Context, cancel context.CancelFunc, id string, logger *zap.Logger) *Page {
	return &Page{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("page").With(zap.String("page_id", id)),
	}
}

// ID identifies the page for logging.
func (p *Page) ID() string { return p.id }

// RunActions runs actions on the tab. The call is bounded by both ctx and the
// page lifetime.
func (p *Page) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Snapshot returns the outer HTML of the document.
func (p *Page) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := p.RunActions(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to snapshot page: %w", err)
	}
	return html, nil
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.RunActions(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Close releases the tab context.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.onClose != nil {
			p.onClose()
		}
		p.logger.Debug("Page closed")
	})
}
