package browser

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Other":      proto.NetworkResourceTypeOther,
	"Manifest":   proto.NetworkResourceTypeManifest,
	"TextTrack":  proto.NetworkResourceTypeTextTrack,
	"Ping":       proto.NetworkResourceTypePing,
}

// alwaysAllowed are the resource types a results page cannot render without.
var alwaysAllowed = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeDocument: true,
	proto.NetworkResourceTypeScript:   true,
	proto.NetworkResourceTypeXHR:      true,
	proto.NetworkResourceTypeFetch:    true,
}

// DefaultBlockedResources is the blocked set used when none is configured.
var DefaultBlockedResources = []string{"Stylesheet", "Font", "Image", "Media", "Other"}

// ResourcePolicy decides which outgoing requests a session aborts.
// The zero value blocks nothing.
type ResourcePolicy struct {
	blocked map[proto.NetworkResourceType]bool
}

// NewResourcePolicy builds a policy from config type names. Unknown names
// and the always-allowed types are ignored.
func NewResourcePolicy(types []string) ResourcePolicy {
	p := ResourcePolicy{blocked: make(map[proto.NetworkResourceType]bool, len(types))}
	for _, name := range types {
		rt, ok := configToProto[strings.TrimSpace(name)]
		if !ok {
			slog.Warn("ignoring unknown resource type", "type", name)
			continue
		}
		p.blocked[rt] = true
	}
	return p
}

// ShouldBlock reports whether a request of the given kind is aborted.
func (p ResourcePolicy) ShouldBlock(kind proto.NetworkResourceType) bool {
	if alwaysAllowed[kind] {
		return false
	}
	return p.blocked[kind]
}

// ShouldBlockRequest extends ShouldBlock with a URL check: stylesheets that
// arrive typed as something else are still caught by their extension.
func (p ResourcePolicy) ShouldBlockRequest(kind proto.NetworkResourceType, rawURL string) bool {
	if alwaysAllowed[kind] {
		return false
	}
	if p.ShouldBlock(kind) {
		return true
	}
	if p.blocked[proto.NetworkResourceTypeStylesheet] {
		path := rawURL
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		return strings.HasSuffix(strings.ToLower(path), ".css")
	}
	return false
}

// Empty reports whether the policy blocks nothing.
func (p ResourcePolicy) Empty() bool { return len(p.blocked) == 0 }

// installFilter mounts a request interceptor on the page that applies
// the policy. It must run before the first navigation.
//
// Returns the running HijackRouter so the caller can Stop it on release,
// or nil if there is nothing to block.
func installFilter(page *rod.Page, policy ResourcePolicy) *rod.HijackRouter {
	if policy.Empty() {
		return nil
	}

	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to block or continue.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if policy.ShouldBlockRequest(ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks; it exits when router.Stop() is called.
	go router.Run()

	return router
}
