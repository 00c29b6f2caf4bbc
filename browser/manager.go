package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
	"github.com/ysmood/gson"

	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/models"
)

// launchTimeout bounds browser start-up and first page creation.
const launchTimeout = 30 * time.Second

// LaunchConfig is everything needed to bring up one session.
type LaunchConfig struct {
	Bin            string
	Headless       bool
	NoSandbox      bool
	Leakless       bool
	Stealth        bool
	UserAgent      string
	AcceptLanguage string
	Policy         ResourcePolicy
}

// LaunchConfigFrom derives a LaunchConfig from process configuration.
func LaunchConfigFrom(bc config.BrowserConfig, sc config.ScraperConfig) LaunchConfig {
	blocked := sc.BlockedResourceTypes
	if blocked == nil {
		blocked = DefaultBlockedResources
	}
	return LaunchConfig{
		Bin:            bc.BrowserBin,
		Headless:       bc.Headless,
		NoSandbox:      bc.NoSandbox,
		Leakless:       bc.Leakless,
		Stealth:        bc.Stealth,
		UserAgent:      bc.UserAgent,
		AcceptLanguage: bc.AcceptLanguage,
		Policy:         NewResourcePolicy(blocked),
	}
}

// Manager launches an isolated browser per acquisition and bounds how many
// run at once. It is safe for concurrent use.
type Manager struct {
	cfg    LaunchConfig
	slots  chan struct{}
	active atomic.Int32

	// slotWait bounds how long Acquire queues for a free slot, whatever
	// the caller's deadline.
	slotWait time.Duration
}

var _ Provider = (*Manager)(nil)

// NewManager creates a Manager allowing at most maxSessions live browsers.
func NewManager(cfg LaunchConfig, maxSessions int) *Manager {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Manager{
		cfg:      cfg,
		slots:    make(chan struct{}, maxSessions),
		slotWait: launchTimeout,
	}
}

// Stats reports live sessions and the configured ceiling.
func (m *Manager) Stats() models.Sessions {
	return models.Sessions{Active: int(m.active.Load()), Limit: cap(m.slots)}
}

// Acquire launches a fresh browser with one configured page. On failure
// any partially started browser is torn down before returning. Waiting for
// a free slot gives up after slotWait even when ctx has no deadline.
func (m *Manager) Acquire(ctx context.Context) (Page, error) {
	waitCtx, cancel := context.WithTimeout(ctx, m.slotWait)
	select {
	case m.slots <- struct{}{}:
		cancel()
	case <-waitCtx.Done():
		cancel()
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire,
			"timed out waiting for a free browser session", waitCtx.Err())
	}

	s, err := m.launch(ctx)
	if err != nil {
		<-m.slots
		return nil, err
	}
	m.active.Add(1)
	slog.Debug("browser session acquired", "session", s.ID)
	return s, nil
}

// Release tears the session down. Teardown errors are returned for the
// caller to log; the session slot is freed regardless.
func (m *Manager) Release(p Page) error {
	s, ok := p.(*Session)
	if !ok {
		return fmt.Errorf("release: page %T was not acquired from this manager", p)
	}
	defer func() {
		m.active.Add(-1)
		<-m.slots
	}()
	err := s.close()
	slog.Debug("browser session released", "session", s.ID)
	return err
}

func (m *Manager) launch(ctx context.Context) (_ *Session, err error) {
	ctx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()

	s := &Session{ID: uuid.NewString()}
	defer func() {
		if err == nil {
			return
		}
		if cerr := s.close(); cerr != nil {
			slog.Warn("teardown of partially launched session failed",
				"session", s.ID, "error", cerr)
		}
	}()

	// The launcher is not bound to ctx: its context outlives Launch and
	// would kill the browser when the start-up deadline passes.
	s.launcher = newLauncher(m.cfg)
	controlURL, err := launchWithin(ctx, s.launcher)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire, "failed to launch browser", err)
	}
	s.launched = true

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire, "failed to connect to browser", err)
	}

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire, "failed to open page", err)
	}
	// Drop the start-up deadline; later calls bind their own contexts.
	s.page = page.Context(context.Background())

	if err := m.configure(s.page); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire, "failed to configure page", err)
	}
	s.router = installFilter(s.page, m.cfg.Policy)

	return s, nil
}

// configure applies identity and evasion settings. It must run before the
// first navigation.
func (m *Manager) configure(page *rod.Page) error {
	if m.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			return fmt.Errorf("inject stealth script: %w", err)
		}
	}
	if m.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      m.cfg.UserAgent,
			AcceptLanguage: m.cfg.AcceptLanguage,
		}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if m.cfg.AcceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": m.cfg.AcceptLanguage}),
		}).Call(page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

// launchWithin runs l.Launch, giving up when ctx expires. A launch that
// finishes after the deadline is killed.
func launchWithin(ctx context.Context, l *launcher.Launcher) (string, error) {
	type result struct {
		url string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		ch <- result{u, err}
	}()

	select {
	case r := <-ch:
		return r.url, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				l.Kill()
			}
		}()
		return "", ctx.Err()
	}
}

// newLauncher builds the hardened launch command line.
func newLauncher(cfg LaunchConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Leakless(cfg.Leakless)

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-accelerated-2d-canvas"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("no-zygote"))
	return l
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
