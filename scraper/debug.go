package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/shopscout/browser"
)

// screenshotTimeout bounds a debug capture so it cannot stall an attempt.
const screenshotTimeout = 5 * time.Second

// saveDebugScreenshot writes a full-page PNG into dir and returns its path.
func saveDebugScreenshot(ctx context.Context, page browser.Page, dir, source, reason string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()

	img, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s-%s.png", source, reason, time.Now().UTC().Format("20060102T150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
