package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// exitGrace bounds how long teardown waits for the browser to exit on its
// own before the process is killed.
const exitGrace = 5 * time.Second

// Session is one launched browser process with exactly one page. It is
// owned by a single pipeline attempt and never shared.
type Session struct {
	ID string

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	launched bool
}

var _ Page = (*Session)(nil)

// Navigate implements Page. The lifecycle listener is registered before
// navigating so no network activity is missed.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

// Reload implements Page.
func (s *Session) Reload(ctx context.Context) error {
	p := s.page.Context(ctx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := p.Reload(); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

// Title implements Page.
func (s *Session) Title(ctx context.Context) (string, error) {
	return s.evalString(ctx, `() => document.title || ""`)
}

// BodyText implements Page.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	return s.evalString(ctx, `() => document.body ? document.body.innerText : ""`)
}

func (s *Session) evalString(ctx context.Context, js string) (string, error) {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Has implements Page.
func (s *Session) Has(ctx context.Context, selector string) (bool, error) {
	found, _, err := s.page.Context(ctx).Has(selector)
	return found, err
}

// Click implements Page.
func (s *Session) Click(ctx context.Context, selector string) error {
	p := s.page.Context(ctx)
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}
	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	wait()
	return ctx.Err()
}

// WaitElement implements Page.
func (s *Session) WaitElement(ctx context.Context, selector string) error {
	return s.page.Context(ctx).WaitElementsMoreThan(selector, 0)
}

// HTML implements Page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Screenshot implements Page.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(true, nil)
}

// close tears the session down in reverse order of construction. Every
// step runs even if an earlier one failed; all failures are joined.
func (s *Session) close() error {
	var errs []error

	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop request filter: %w", err))
		}
	}
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.launcher != nil {
		if s.launched {
			s.reap()
		} else {
			// Launch never produced a process to wait on; only the profile dir is left.
			_ = os.RemoveAll(s.launcher.Get(flags.UserDataDir))
		}
	}

	return errors.Join(errs...)
}

// reap waits for the browser process to exit and removes its profile
// directory, killing the process if it outlives exitGrace.
func (s *Session) reap() {
	done := make(chan struct{})
	go func() {
		s.launcher.Cleanup()
		close(done)
	}()

	timer := time.NewTimer(exitGrace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.launcher.Kill()
		<-done
	}
}
