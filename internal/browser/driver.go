// Package browser implements the engine's BrowserDriver over chromedp. The
// driver only performs interactions a human could: visible clicks, typed
// keystrokes with cadence, and native file-chooser uploads. It never
// mutates the DOM into states that have no human-equivalent path.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/config"
)

// Driver drives one browser tab for one session. Sessions never share a
// driver; each runs in its own browser context.
type Driver struct {
	tab           context.Context
	cancel        []context.CancelFunc
	pacer         schemas.Pacer
	uploadTimeout time.Duration
	log           *zap.Logger
}

// NewDriver allocates a browser context and opens one tab.
func NewDriver(ctx context.Context, cfg config.BrowserConfig, pacer schemas.Pacer, logger *zap.Logger) (*Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = 30 * time.Second
	}
	d := &Driver{
		tab:           tabCtx,
		cancel:        []context.CancelFunc{cancelTab, cancelAlloc},
		pacer:         pacer,
		uploadTimeout: uploadTimeout,
		log:           logger.Named("browser"),
	}

	// Start the browser eagerly so allocation failures surface here, not
	// on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return d, nil
}

// Close tears down the tab and browser context.
func (d *Driver) Close() {
	for _, cancel := range d.cancel {
		cancel()
	}
}

// run executes chromedp actions on the tab while honoring the caller's
// context for cancellation and deadlines.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(d.tab, actions...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Navigate loads the URL and waits for the document body.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.log.Debug("Navigating", zap.String("url", url))
	return d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CaptureSnapshot captures the current URL and full document markup as an
// immutable parsed snapshot.
func (d *Driver) CaptureSnapshot(ctx context.Context) (*schemas.Snapshot, error) {
	var url, markup string
	if err := d.run(ctx,
		chromedp.Location(&url),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return schemas.ParseSnapshot(url, markup, time.Now())
}

// Click pauses like a person deciding, then activates the control.
func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := d.pacer.Pause(ctx); err != nil {
		return err
	}
	return d.run(ctx, chromedp.Click(selector, chromedp.BySearch))
}

// Fill focuses the control, clears any prior content and types the text
// rune by rune with the pacer's keystroke cadence. Clearing first makes
// Fill a replace, which validation corrections rely on.
func (d *Driver) Fill(ctx context.Context, selector, text string) error {
	if err := d.Click(ctx, selector); err != nil {
		return fmt.Errorf("failed to focus %q: %w", selector, err)
	}
	if err := d.run(ctx, chromedp.Clear(selector, chromedp.BySearch)); err != nil {
		return fmt.Errorf("failed to clear %q: %w", selector, err)
	}

	runes := []rune(text)
	for i := range runes {
		if delay := d.pacer.KeyDelay(runes, i); delay > 0 {
			if err := d.run(ctx, chromedp.Sleep(delay)); err != nil {
				return err
			}
		}
		if err := d.run(ctx, chromedp.SendKeys(selector, string(runes[i]), chromedp.BySearch)); err != nil {
			return fmt.Errorf("failed to type into %q: %w", selector, err)
		}
	}
	return nil
}

// SelectOption chooses a select option by value.
func (d *Driver) SelectOption(ctx context.Context, selector, value string) error {
	if err := d.pacer.Pause(ctx); err != nil {
		return err
	}
	return d.run(ctx, chromedp.SetValue(selector, value, chromedp.BySearch))
}

// SetChecked brings a checkbox or radio control to the desired state by
// clicking it, the way a user would. Already-correct state is left alone.
func (d *Driver) SetChecked(ctx context.Context, selector string, checked bool) error {
	var current bool
	script := fmt.Sprintf(
		`document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue?.checked === true`,
		selector)
	if err := d.run(ctx, chromedp.Evaluate(script, &current)); err != nil {
		return fmt.Errorf("failed to read checked state of %q: %w", selector, err)
	}
	if current == checked {
		return nil
	}
	return d.Click(ctx, selector)
}

// AttachFile uploads path through the browser's native file-selection
// affordance: the file-chooser dialog is intercepted, the visible control
// is clicked, and the chooser is satisfied with the file. The input
// element itself is never unhidden or force-enabled.
func (d *Driver) AttachFile(ctx context.Context, selector, path string) error {
	if err := d.pacer.Pause(ctx); err != nil {
		return err
	}

	chooserErr := make(chan error, 1)
	lctx, stopListening := context.WithCancel(d.tab)
	defer stopListening()

	chromedp.ListenTarget(lctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventFileChooserOpened); ok {
			go func() {
				chooserErr <- chromedp.Run(d.tab,
					dom.SetFileInputFiles([]string{path}).WithBackendNodeID(e.BackendNodeID),
				)
			}()
		}
	})

	if err := d.run(ctx,
		page.SetInterceptFileChooserDialog(true),
		chromedp.Click(selector, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("failed to open file chooser via %q: %w", selector, err)
	}
	defer func() {
		_ = chromedp.Run(d.tab, page.SetInterceptFileChooserDialog(false))
	}()

	if err := awaitChooser(ctx, d.uploadTimeout, chooserErr); err != nil {
		return err
	}
	d.log.Debug("File supplied via native chooser", zap.String("path", path))
	return nil
}

// awaitChooser waits for the intercepted file chooser to be satisfied. Some
// portals wire upload controls that never open a native chooser; the wait is
// bounded so such a control fails the attempt instead of hanging the
// session, and the attachment handler's retry and fallback policy engages.
func awaitChooser(ctx context.Context, timeout time.Duration, result <-chan error) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("file chooser did not open within %s", timeout)
	case err := <-result:
		if err != nil {
			return fmt.Errorf("failed to supply file to chooser: %w", err)
		}
		return nil
	}
}

// WaitStable blocks until the document markup stops changing between two
// consecutive samples, or the timeout elapses.
func (d *Driver) WaitStable(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var previous string
	for {
		var markup string
		if err := d.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
			return err
		}
		if previous != "" && strings.Compare(previous, markup) == 0 {
			return nil
		}
		previous = markup

		if time.Now().After(deadline) {
			// Still mutating; let the caller decide from a fresh snapshot.
			return nil
		}
		if err := d.run(ctx, chromedp.Sleep(200*time.Millisecond)); err != nil {
			return err
		}
	}
}
