package browser

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// webdriverScript hides the automation flag before any page script runs
const webdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// InstallStealth registers the init script on every new document in the tab
func InstallStealth() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(webdriverScript).Do(ctx)
		return err
	})
}
