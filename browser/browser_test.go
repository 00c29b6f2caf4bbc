package browser

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/models"
)

func TestShouldBlock(t *testing.T) {
	p := NewResourcePolicy(DefaultBlockedResources)

	tests := []struct {
		kind proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeStylesheet, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeMedia, true},
		{proto.NetworkResourceTypeOther, true},
		{proto.NetworkResourceTypeDocument, false},
		{proto.NetworkResourceTypeScript, false},
		{proto.NetworkResourceTypeXHR, false},
		{proto.NetworkResourceTypeFetch, false},
		{proto.NetworkResourceTypeWebSocket, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.ShouldBlock(tt.kind), "kind %s", tt.kind)
	}
}

func TestShouldBlockNeverBlocksRequiredTypes(t *testing.T) {
	// Even a policy that names them cannot block what pages need to render.
	p := NewResourcePolicy([]string{"Document", "Script", "XHR", "Fetch", "Image"})

	assert.False(t, p.ShouldBlock(proto.NetworkResourceTypeDocument))
	assert.False(t, p.ShouldBlock(proto.NetworkResourceTypeScript))
	assert.False(t, p.ShouldBlockRequest(proto.NetworkResourceTypeXHR, "https://x.example/a.css"))
	assert.True(t, p.ShouldBlock(proto.NetworkResourceTypeImage))
}

func TestShouldBlockRequestCSSSuffix(t *testing.T) {
	p := NewResourcePolicy([]string{"Stylesheet"})

	assert.True(t, p.ShouldBlockRequest(proto.NetworkResourceTypeOther, "https://cdn.example/site.CSS?v=3"))
	assert.False(t, p.ShouldBlockRequest(proto.NetworkResourceTypeOther, "https://cdn.example/site.js"))

	fontsOnly := NewResourcePolicy([]string{"Font"})
	assert.False(t, fontsOnly.ShouldBlockRequest(proto.NetworkResourceTypeOther, "https://cdn.example/site.css"))
}

func TestEmptyPolicy(t *testing.T) {
	var zero ResourcePolicy
	assert.True(t, zero.Empty())
	assert.False(t, zero.ShouldBlock(proto.NetworkResourceTypeImage))
	assert.True(t, NewResourcePolicy([]string{"Bogus"}).Empty())
}

func TestNewLauncherFlags(t *testing.T) {
	l := newLauncher(LaunchConfig{Headless: true, NoSandbox: true, Bin: "/opt/chrome"})

	for _, f := range []string{
		"no-sandbox", "disable-setuid-sandbox", "disable-gpu", "disable-dev-shm-usage",
		"disable-accelerated-2d-canvas", "no-first-run", "no-zygote",
	} {
		assert.True(t, l.Has(flags.Flag(f)), "missing flag %s", f)
	}
	assert.Equal(t, "AutomationControlled", l.Get(flags.Flag("disable-blink-features")))
	assert.False(t, l.Has(flags.Flag("enable-automation")))
	assert.Equal(t, "/opt/chrome", l.Get(flags.Bin))
	assert.True(t, l.Has(flags.Headless))
}

func TestLaunchConfigFrom(t *testing.T) {
	cfg := config.Load()
	cfg.Browser.Stealth = false
	cfg.Scraper.BlockedResourceTypes = []string{"Font"}

	lc := LaunchConfigFrom(cfg.Browser, cfg.Scraper)

	assert.False(t, lc.Stealth)
	assert.Equal(t, cfg.Browser.UserAgent, lc.UserAgent)
	assert.True(t, lc.Policy.ShouldBlock(proto.NetworkResourceTypeFont))
	assert.False(t, lc.Policy.ShouldBlock(proto.NetworkResourceTypeImage))
}

func TestAcquireRespectsSessionLimit(t *testing.T) {
	m := NewManager(LaunchConfig{}, 1)
	m.slots <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := m.Acquire(ctx)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Equal(t, models.ErrCodeSessionAcquire, models.CodeOf(err))
	assert.Equal(t, models.Sessions{Active: 0, Limit: 1}, m.Stats())
}

func TestAcquireSlotWaitIsBounded(t *testing.T) {
	m := NewManager(LaunchConfig{}, 1)
	m.slotWait = 50 * time.Millisecond
	m.slots <- struct{}{}

	start := time.Now()
	p, err := m.Acquire(context.WithoutCancel(context.Background()))
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Equal(t, models.ErrCodeSessionAcquire, models.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, m.slots, 1, "a failed wait must not take a slot")
}

func TestNewManagerDefaultsSlotWait(t *testing.T) {
	assert.Equal(t, launchTimeout, NewManager(LaunchConfig{}, 2).slotWait)
}

type foreignPage struct{ Page }

func TestReleaseRejectsForeignPage(t *testing.T) {
	m := NewManager(LaunchConfig{}, 2)
	assert.Error(t, m.Release(foreignPage{}))
}
