package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shopscout/models"
	"github.com/use-agent/shopscout/sources"
)

func testMitigator() *Mitigator {
	return &Mitigator{NavigationTimeout: time.Second, StepTimeout: time.Second}
}

var challenge = &sources.ChallengeDetector{
	TitleMarkers: []string{"captcha"},
	Markers:      []string{"are you a robot"},
}

func TestHandleChallenge(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		p := newFakePage()
		p.title = "Amazon.in : pixel 9"
		assert.Equal(t, ChallengeAbsent, testMitigator().HandleChallenge(context.Background(), p, challenge))
		assert.Zero(t, p.count("reload"))
	})

	t.Run("product text is not a challenge", func(t *testing.T) {
		p := newFakePage()
		p.title = "Amazon.in : robot vacuum"
		p.body = "Robot Vacuum Cleaner with captcha-free setup"

		assert.Equal(t, ChallengeAbsent, testMitigator().HandleChallenge(context.Background(), p, challenge))
		assert.Zero(t, p.count("reload"))
	})

	t.Run("cleared by one reload", func(t *testing.T) {
		p := newFakePage()
		p.body = "Type the characters you see. Are you a robot?"
		p.onReload = func(p *fakePage) { p.body = "results" }

		assert.Equal(t, ChallengeCleared, testMitigator().HandleChallenge(context.Background(), p, challenge))
		assert.Equal(t, 1, p.count("reload"))
	})

	t.Run("unresolved proceeds after exactly one reload", func(t *testing.T) {
		p := newFakePage()
		p.title = "CAPTCHA"

		assert.Equal(t, ChallengeUnresolved, testMitigator().HandleChallenge(context.Background(), p, challenge))
		assert.Equal(t, 1, p.count("reload"))
	})

	t.Run("reload failure is tolerated", func(t *testing.T) {
		p := newFakePage()
		p.title = "captcha"
		p.reloadErr = errors.New("net::ERR_CONNECTION_RESET")

		assert.Equal(t, ChallengeUnresolved, testMitigator().HandleChallenge(context.Background(), p, challenge))
	})

	t.Run("selector marker", func(t *testing.T) {
		p := newFakePage()
		p.present["#captchacharacters"] = true
		d := &sources.ChallengeDetector{Selector: "#captchacharacters"}

		assert.Equal(t, ChallengeUnresolved, testMitigator().HandleChallenge(context.Background(), p, d))
	})

	t.Run("no detector", func(t *testing.T) {
		p := newFakePage()
		p.title = "captcha"
		assert.Equal(t, ChallengeAbsent, testMitigator().HandleChallenge(context.Background(), p, nil))
	})
}

var gate = &sources.InterstitialDetector{Gate: ".gate", Continue: ".gate button"}

func TestClearInterstitial(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		p := newFakePage()
		assert.Equal(t, InterstitialAbsent, testMitigator().ClearInterstitial(context.Background(), p, gate))
		assert.Zero(t, p.count("click"))
		assert.Zero(t, p.count("reload"))
	})

	t.Run("cleared by continue", func(t *testing.T) {
		p := newFakePage()
		p.present[".gate"] = true
		p.onClick = func(p *fakePage) { delete(p.present, ".gate") }

		assert.Equal(t, InterstitialCleared, testMitigator().ClearInterstitial(context.Background(), p, gate))
		assert.Equal(t, 1, p.count("click"))
		assert.Zero(t, p.count("reload"))
	})

	t.Run("click fails falls back to reload", func(t *testing.T) {
		p := newFakePage()
		p.present[".gate"] = true
		p.clickErr = errors.New("element not found")

		assert.Equal(t, InterstitialReloaded, testMitigator().ClearInterstitial(context.Background(), p, gate))
		assert.Equal(t, 1, p.count("reload"))
	})

	t.Run("gate survives click", func(t *testing.T) {
		p := newFakePage()
		p.present[".gate"] = true

		assert.Equal(t, InterstitialReloaded, testMitigator().ClearInterstitial(context.Background(), p, gate))
		assert.Equal(t, 1, p.count("click"))
		assert.Equal(t, 1, p.count("reload"))
	})

	t.Run("failed reload is accepted", func(t *testing.T) {
		p := newFakePage()
		p.present[".gate"] = true
		p.clickErr = errors.New("boom")
		p.reloadErr = context.DeadlineExceeded

		assert.Equal(t, InterstitialReloadFailed, testMitigator().ClearInterstitial(context.Background(), p, gate))
	})
}

func TestNavigateClassifiesFailures(t *testing.T) {
	p := newFakePage()
	p.navBlocks = true
	err := Navigate(context.Background(), p, "https://www.amazon.in/s?k=x", 10*time.Millisecond)
	assert.Equal(t, models.ErrCodeNavigationTimeout, models.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p = newFakePage()
	p.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	err = Navigate(context.Background(), p, "https://www.amazon.in/s?k=x", time.Second)
	assert.Equal(t, models.ErrCodeNetwork, models.CodeOf(err))

	p = newFakePage()
	require.NoError(t, Navigate(context.Background(), p, "https://www.amazon.in/s?k=x", time.Second))
}

func TestWaitForReady(t *testing.T) {
	p := newFakePage()
	p.present[".card"] = true

	ok, err := WaitForReady(context.Background(), p, ".card", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = WaitForReady(context.Background(), p, ".missing", 10*time.Millisecond)
	require.NoError(t, err, "a ready timeout is a soft failure")
	assert.False(t, ok)

	p.waitErr = errors.New("execution context was destroyed")
	_, err = WaitForReady(context.Background(), p, ".card", time.Second)
	assert.Equal(t, models.ErrCodeExtraction, models.CodeOf(err))
}
