package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shopscout/models"
)

func testOptions() Options {
	return Options{
		NavigationTimeout:   time.Second,
		ReadyTimeout:        20 * time.Millisecond,
		InterstitialTimeout: time.Second,
	}
}

func TestPipelineSuccess(t *testing.T) {
	p := newFakePage()
	p.present[".s-card-container"] = true
	p.html = page(amazonCard("Pixel 9", "79,999", "/dp/X"))
	provider := &fakeProvider{page: p}

	products, err := NewPipeline(provider, testOptions(), nil).Run(context.Background(), mustSource(t, "amazon"), "pixel 9")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Pixel 9", products[0].Name)

	assert.Equal(t, 1, provider.acquired)
	assert.Equal(t, 1, provider.released)
	assert.Equal(t, []string{"navigate", "wait", "html"}, p.calls)
}

func TestPipelineReleasesOnFailure(t *testing.T) {
	p := newFakePage()
	p.navErr = errors.New("net::ERR_CONNECTION_REFUSED")
	provider := &fakeProvider{page: p, releaseErr: errors.New("browser already gone")}

	_, err := NewPipeline(provider, testOptions(), nil).Run(context.Background(), mustSource(t, "amazon"), "pixel 9")
	assert.Equal(t, models.ErrCodeNetwork, models.CodeOf(err))
	assert.Equal(t, 1, provider.released, "release errors are logged, not returned")
}

func TestPipelineReleasesOnEveryFailurePath(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *fakePage)
		code  string
		calls []string
	}{
		{
			name:  "navigation fault",
			setup: func(p *fakePage) { p.navErr = errors.New("net::ERR_CONNECTION_REFUSED") },
			code:  models.ErrCodeNetwork,
			calls: []string{"navigate"},
		},
		{
			name:  "wait fault",
			setup: func(p *fakePage) { p.waitErr = errors.New("target closed") },
			code:  models.ErrCodeExtraction,
			calls: []string{"navigate", "wait"},
		},
		{
			name: "extraction fault",
			setup: func(p *fakePage) {
				p.present[".s-card-container"] = true
				p.htmlErr = errors.New("execution context was destroyed")
			},
			code:  models.ErrCodeExtraction,
			calls: []string{"navigate", "wait", "html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePage()
			tt.setup(p)
			provider := &fakeProvider{page: p}

			products, err := NewPipeline(provider, testOptions(), nil).Run(context.Background(), mustSource(t, "amazon"), "pixel 9")
			require.Error(t, err)
			assert.Nil(t, products)
			assert.Equal(t, tt.code, models.CodeOf(err))
			assert.Equal(t, tt.calls, p.calls)
			assert.Equal(t, 1, provider.acquired)
			assert.Equal(t, 1, provider.released)
		})
	}
}

func TestPipelineAcquireFailure(t *testing.T) {
	provider := &fakeProvider{acquireErr: errors.New("chrome not found")}

	_, err := NewPipeline(provider, testOptions(), nil).Run(context.Background(), mustSource(t, "flipkart"), "pixel 9")
	assert.Equal(t, models.ErrCodeSessionAcquire, models.CodeOf(err))
	assert.Zero(t, provider.released)
}

func TestPipelineBlankQuerySkipsBrowser(t *testing.T) {
	provider := &fakeProvider{page: newFakePage()}

	_, err := NewPipeline(provider, testOptions(), nil).Run(context.Background(), mustSource(t, "amazon"), "  ")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
	assert.Zero(t, provider.acquired)
}

func TestPipelineReadyTimeoutIsEmptySuccess(t *testing.T) {
	dir := t.TempDir()
	p := newFakePage()
	p.screenshot = []byte("\x89PNG")
	provider := &fakeProvider{page: p}

	opts := testOptions()
	opts.Debug = true
	opts.ScreenshotDir = dir

	products, err := NewPipeline(provider, opts, nil).Run(context.Background(), mustSource(t, "amazon"), "pixel 9")
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	assert.Zero(t, p.count("html"), "no extraction after a ready timeout")

	shots, err := filepath.Glob(filepath.Join(dir, "amazon-not_ready-*.png"))
	require.NoError(t, err)
	require.Len(t, shots, 1)
	data, err := os.ReadFile(shots[0])
	require.NoError(t, err)
	assert.Equal(t, p.screenshot, data)
}

func TestPipelineRunsMitigations(t *testing.T) {
	p := newFakePage()
	p.title = "Robot Check"
	p.onReload = func(p *fakePage) {
		p.title = "Amazon.in"
		p.present[".s-card-container"] = true
	}
	p.html = page(amazonCard("After reload", "1", "/r"))
	provider := &fakeProvider{page: p}

	products, err := NewPipeline(provider, testOptions(), nil).Run(context.Background(), mustSource(t, "amazon"), "pixel 9")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "After reload", products[0].Name)
	assert.Equal(t, 1, p.count("reload"))
}
