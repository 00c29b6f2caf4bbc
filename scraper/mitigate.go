package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/shopscout/browser"
	"github.com/use-agent/shopscout/sources"
)

// ChallengeOutcome is what happened when a page was checked for a bot challenge.
type ChallengeOutcome int

const (
	ChallengeAbsent ChallengeOutcome = iota
	// ChallengeCleared means one reload made the challenge go away.
	ChallengeCleared
	// ChallengeUnresolved means the challenge survived the reload. The
	// attempt carries on; it usually ends with zero results.
	ChallengeUnresolved
)

func (o ChallengeOutcome) String() string {
	switch o {
	case ChallengeAbsent:
		return "absent"
	case ChallengeCleared:
		return "cleared"
	case ChallengeUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// InterstitialOutcome is the terminal result of the interstitial state machine.
type InterstitialOutcome int

const (
	InterstitialAbsent InterstitialOutcome = iota
	// InterstitialCleared means the continue control got us past the gate.
	InterstitialCleared
	// InterstitialReloaded means recovery failed and a plain reload was issued.
	InterstitialReloaded
	// InterstitialReloadFailed means the fallback reload itself failed.
	InterstitialReloadFailed
)

func (o InterstitialOutcome) String() string {
	switch o {
	case InterstitialAbsent:
		return "absent"
	case InterstitialCleared:
		return "cleared"
	case InterstitialReloaded:
		return "reloaded"
	case InterstitialReloadFailed:
		return "reload_failed"
	default:
		return "unknown"
	}
}

// interstitialState is a step of the interstitial recovery machine:
//
//	detect -> recover -> (cleared | fallbackReload) -> done
type interstitialState int

const (
	stateDetect interstitialState = iota
	stateAttemptRecovery
	stateCleared
	stateFallbackReload
	stateDone
)

func (s interstitialState) String() string {
	return [...]string{"detect", "attempt_recovery", "cleared", "fallback_reload", "done"}[s]
}

// Mitigator clears known anti-bot obstacles from a loaded page. It never
// fails an attempt: every outcome is logged and the caller proceeds.
type Mitigator struct {
	// NavigationTimeout bounds the challenge reload.
	NavigationTimeout time.Duration
	// StepTimeout bounds each interstitial step.
	StepTimeout time.Duration
	Logger      *slog.Logger
}

func (m *Mitigator) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// HandleChallenge checks for a bot challenge and, if one is showing,
// reloads exactly once and checks again.
func (m *Mitigator) HandleChallenge(ctx context.Context, page browser.Page, d *sources.ChallengeDetector) ChallengeOutcome {
	if d == nil || !m.challengePresent(ctx, page, d) {
		return ChallengeAbsent
	}

	m.logger().Info("bot challenge detected, reloading once")
	rctx, cancel := context.WithTimeout(ctx, m.NavigationTimeout)
	err := page.Reload(rctx)
	cancel()
	if err != nil {
		m.logger().Warn("challenge reload failed", "error", err)
	}

	if m.challengePresent(ctx, page, d) {
		m.logger().Warn("bot challenge still present after reload, continuing")
		return ChallengeUnresolved
	}
	return ChallengeCleared
}

func (m *Mitigator) challengePresent(ctx context.Context, page browser.Page, d *sources.ChallengeDetector) bool {
	ctx, cancel := context.WithTimeout(ctx, m.StepTimeout)
	defer cancel()

	if d.Selector != "" {
		found, err := page.Has(ctx, d.Selector)
		if err != nil {
			m.logger().Debug("challenge selector check failed", "error", err)
		}
		if found {
			return true
		}
	}

	title, err := page.Title(ctx)
	if err != nil {
		m.logger().Debug("could not read page title", "error", err)
	}
	body, err := page.BodyText(ctx)
	if err != nil {
		m.logger().Debug("could not read page body", "error", err)
	}
	return d.Matches(title, body)
}

// ClearInterstitial runs the interstitial state machine to completion.
func (m *Mitigator) ClearInterstitial(ctx context.Context, page browser.Page, d *sources.InterstitialDetector) InterstitialOutcome {
	if d == nil {
		return InterstitialAbsent
	}

	outcome := InterstitialAbsent
	state := stateDetect
	for state != stateDone {
		next := m.step(ctx, page, d, state, &outcome)
		m.logger().Debug("interstitial transition", "from", state, "to", next)
		state = next
	}
	return outcome
}

func (m *Mitigator) step(ctx context.Context, page browser.Page, d *sources.InterstitialDetector,
	state interstitialState, outcome *InterstitialOutcome) interstitialState {

	ctx, cancel := context.WithTimeout(ctx, m.StepTimeout)
	defer cancel()

	switch state {
	case stateDetect:
		found, err := page.Has(ctx, d.Gate)
		if err != nil {
			m.logger().Debug("interstitial check failed", "error", err)
		}
		if !found {
			return stateDone
		}
		m.logger().Info("interstitial detected, attempting recovery")
		return stateAttemptRecovery

	case stateAttemptRecovery:
		if err := page.Click(ctx, d.Continue); err != nil {
			m.logger().Warn("interstitial recovery click failed", "error", err)
			return stateFallbackReload
		}
		if still, _ := page.Has(ctx, d.Gate); still {
			m.logger().Warn("interstitial still present after recovery")
			return stateFallbackReload
		}
		return stateCleared

	case stateCleared:
		*outcome = InterstitialCleared
		return stateDone

	case stateFallbackReload:
		if err := page.Reload(ctx); err != nil {
			m.logger().Warn("interstitial fallback reload failed, continuing", "error", err)
			*outcome = InterstitialReloadFailed
		} else {
			*outcome = InterstitialReloaded
		}
		return stateDone
	}
	return stateDone
}
