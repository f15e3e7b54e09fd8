// Package stealth hides the most common automation markers from page scripts.
package stealth

import (
	"context"
	_ "embed"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// EvasionsJS masks navigator.webdriver and fills a few properties that are
// empty under automation.
//
//go:embed evasions.js
var EvasionsJS string

// Apply registers the evasions for every future document and runs them on
// the current one.
func Apply(logger *zap.Logger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(EvasionsJS).Do(ctx); err != nil {
			return err
		}
		if _, exp, err := runtime.Evaluate(EvasionsJS).WithSilent(true).Do(ctx); err != nil {
			return err
		} else if exp != nil {
			return exp
		}
		if logger != nil {
			logger.Debug("Stealth evasions applied")
		}
		return nil
	})
}
