package scraper

import (
	"context"
	"errors"
	"sync"

	"github.com/use-agent/shopscout/browser"
)

// fakePage is an in-memory browser.Page. Selectors listed in present match
// immediately; anything else blocks WaitElement until ctx expires.
type fakePage struct {
	mu sync.Mutex

	html    string
	title   string
	body    string
	present map[string]bool

	navErr     error
	navBlocks  bool
	reloadErr  error
	clickErr   error
	htmlErr    error
	waitErr    error
	screenshot []byte

	onReload func(p *fakePage)
	onClick  func(p *fakePage)

	calls []string
}

var _ browser.Page = (*fakePage)(nil)

func newFakePage() *fakePage {
	return &fakePage{present: map[string]bool{}}
}

func (p *fakePage) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakePage) count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakePage) Navigate(ctx context.Context, _ string) error {
	p.record("navigate")
	if p.navBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.navErr
}

func (p *fakePage) Reload(context.Context) error {
	p.record("reload")
	if p.onReload != nil {
		p.onReload(p)
	}
	return p.reloadErr
}

func (p *fakePage) Title(context.Context) (string, error)    { return p.title, nil }
func (p *fakePage) BodyText(context.Context) (string, error) { return p.body, nil }

func (p *fakePage) Has(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector], nil
}

func (p *fakePage) Click(context.Context, string) error {
	p.record("click")
	if p.clickErr != nil {
		return p.clickErr
	}
	if p.onClick != nil {
		p.onClick(p)
	}
	return nil
}

func (p *fakePage) WaitElement(ctx context.Context, selector string) error {
	p.record("wait")
	if p.waitErr != nil {
		return p.waitErr
	}
	if found, _ := p.Has(ctx, selector); found {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.record("html")
	return p.html, p.htmlErr
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	if p.screenshot == nil {
		return nil, errors.New("no screenshot")
	}
	return p.screenshot, nil
}

// fakeProvider hands out one page and tracks acquire/release pairing.
type fakeProvider struct {
	mu         sync.Mutex
	page       *fakePage
	acquireErr error
	releaseErr error
	acquired   int
	released   int
}

func (f *fakeProvider) Acquire(context.Context) (browser.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return f.page, nil
}

func (f *fakeProvider) Release(browser.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return f.releaseErr
}
