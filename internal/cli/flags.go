package cli

import (
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/spf13/pflag"
)

// renderFlagKeys maps the flags added by addRenderFlags to config keys
var renderFlagKeys = map[string]string{
	"format":      "render.format",
	"with-ids":    "render.with_ids",
	"escape":      "render.escape_text",
	"clamp":       "validate.clamp",
	"anchors":     "fragment.anchor_placement",
	"max-ranges":  "fragment.max_ranges",
	"timeout":     "http.timeout",
	"ua":          "http.user_agent",
	"http-proxy":  "http.http_proxy",
	"https-proxy": "http.https_proxy",
	"no-proxy":    "http.no_proxy",
	"cache-dir":   "cache.dir",
}

// addRenderFlags registers the flags shared by every command that renders
func addRenderFlags(fs *pflag.FlagSet) {
	d := model.DefaultConfig()
	fs.StringP("format", "f", d.Render.Format, "output format (markup, html, events)")
	fs.Bool("with-ids", d.Render.WithIDs, "annotate markup with range ids and fragment ordinals")
	fs.Bool("escape", d.Render.EscapeText, "escape <, > and & in text")
	fs.Bool("clamp", d.Validate.Clamp, "repair out-of-bounds and reversed ranges instead of rejecting them")
	fs.String("anchors", d.Fragment.AnchorPlacement, "zero-length range placement at a closing boundary (outside, inside)")
	fs.Int("max-ranges", d.Fragment.MaxRanges, "reject documents with more ranges than this")
	fs.Duration("timeout", d.HTTP.Timeout, "HTTP timeout for remote sources")
	fs.String("ua", d.HTTP.UserAgent, "HTTP User-Agent")
	fs.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fs.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	fs.String("no-proxy", "", "hosts that bypass the proxy (overrides NO_PROXY env var)")
	fs.String("cache-dir", d.Cache.Dir, "render cache directory")
	fs.Bool("no-cache", false, "disable the render cache")
}

// withKeys returns renderFlagKeys extended by extra
func withKeys(extra map[string]string) map[string]string {
	keys := make(map[string]string, len(renderFlagKeys)+len(extra))
	for k, v := range renderFlagKeys {
		keys[k] = v
	}
	for k, v := range extra {
		keys[k] = v
	}
	return keys
}

// applyNoCache turns the cache off when --no-cache was given
func applyNoCache(fs *pflag.FlagSet, cfg *model.Config) {
	if noCache, err := fs.GetBool("no-cache"); err == nil && noCache {
		cfg.Cache.Enabled = false
	}
}
