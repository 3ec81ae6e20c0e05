package fetcher

import (
	"net/http"
	"strings"
)

// BlockType names the anti-bot mechanism recognised in a response.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
)

// DetectBlock checks a response for a challenge page served in place of
// the search results.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp == nil {
		return BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	// Challenge pages are small; real result pages run to hundreds of KB
	// and may mention captcha in inline scripts.
	if len(body) > 64*1024 {
		return BlockNone
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") || strings.Contains(lower, "cf-browser-verification") {
		return BlockCloudflare
	}
	if strings.Contains(lower, "captcha") {
		return BlockCaptcha
	}
	return BlockNone
}
