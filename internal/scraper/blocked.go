package scraper

import (
	"bytes"
	"net/http"
	"strings"
)

// Detector examines a fetch result to determine whether a bot-protection
// layer blocked or challenged the request.
type Detector func(res *Result) (detected bool, source string)

// DefaultDetectors returns the standard list of bot-protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Detect runs the result through all provided detectors, updating it in
// place. Returns true if any detection triggered.
func Detect(res *Result, detectors []Detector) bool {
	if res == nil {
		return false
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			res.Blocked = true
			res.BlockedBy = source
			return true
		}
	}
	res.Blocked = false
	res.BlockedBy = ""
	return false
}

func headerValue(headers http.Header, key string) string {
	if headers == nil {
		return ""
	}
	return headers.Get(key)
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res *Result) (bool, string) {
	// Status codes 403 or 503 are common for CF challenges
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusServiceUnavailable {
		server := strings.ToLower(headerValue(res.Headers, "Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}

		if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
			bytes.Contains(res.Body, []byte("cloudflare-nginx")) ||
			bytes.Contains(res.Body, []byte("cf-turnstile")) ||
			bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(res *Result) (bool, string) {
	if res.StatusCode == http.StatusForbidden {
		server := strings.ToLower(headerValue(res.Headers, "Server"))
		if strings.Contains(server, "akamai") {
			return true, "Akamai"
		}

		// Akamai often returns a generic "Reference #" block page
		if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(res *Result) (bool, string) {
	if res.StatusCode == http.StatusForbidden {
		server := strings.ToLower(headerValue(res.Headers, "Server"))
		if strings.Contains(server, "datadome") {
			return true, "DataDome"
		}

		if headerValue(res.Headers, "X-DataDome") != "" || headerValue(res.Headers, "X-DataDome-Response") != "" {
			return true, "DataDome"
		}

		if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(res.Body, []byte("datadome")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(res *Result) (bool, string) {
	if res.StatusCode == http.StatusForbidden {
		if headerValue(res.Headers, "X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}

		if bytes.Contains(res.Body, []byte("client.perimeterx.net")) ||
			bytes.Contains(res.Body, []byte("px-captcha")) ||
			bytes.Contains(res.Body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
