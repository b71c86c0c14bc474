package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mileusna/useragent"
)

// Fingerprint is the device/network snapshot captured when a session
// is created. Parsing is best-effort; any field may be empty when the
// user agent is unparseable.
type Fingerprint struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	OS        string `json:"os,omitempty"`
	Device    struct {
		Model  string `json:"model,omitempty"`
		Vendor string `json:"vendor,omitempty"`
	} `json:"device,omitempty"`
	Browser struct {
		Name    string `json:"name,omitempty"`
		Version string `json:"version,omitempty"`
	} `json:"browser,omitempty"`
}

// FingerprintMatch grades a stored fingerprint against the current
// request. A mismatch is a soft trust signal, never a hard failure:
// users change networks and upgrade browsers legitimately, and locking
// them out on either would be worse than the downgrade.
type FingerprintMatch int

const (
	// FingerprintMatched means IP and browser family both line up.
	FingerprintMatched FingerprintMatch = iota
	// FingerprintMismatched means the request no longer resembles the
	// device the session was created on.
	FingerprintMismatched
)

// ExtractFingerprint derives the fingerprint from a request.
func ExtractFingerprint(c *fiber.Ctx) Fingerprint {
	fp := Fingerprint{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}

	if fp.UserAgent == "" {
		return fp
	}

	ua := useragent.Parse(fp.UserAgent)
	fp.OS = ua.OS
	fp.Browser.Name = ua.Name
	fp.Browser.Version = ua.Version
	fp.Device.Model = ua.Device
	// The UA string carries no reliable vendor; infer the obvious ones.
	fp.Device.Vendor = deviceVendor(ua)

	return fp
}

// CompareFingerprints reports whether the current request still looks
// like the device the stored fingerprint was captured on. Comparison
// is on IP plus browser/OS family; browser version is ignored since it
// changes on every auto-update.
func CompareFingerprints(prev, current Fingerprint) FingerprintMatch {
	if prev.IP != current.IP {
		return FingerprintMismatched
	}
	if !strings.EqualFold(prev.OS, current.OS) {
		return FingerprintMismatched
	}
	if !strings.EqualFold(prev.Browser.Name, current.Browser.Name) {
		return FingerprintMismatched
	}
	return FingerprintMatched
}

func deviceVendor(ua useragent.UserAgent) string {
	switch {
	case ua.OS == useragent.IOS || ua.OS == useragent.MacOS:
		return "Apple"
	case strings.Contains(strings.ToLower(ua.Device), "pixel"):
		return "Google"
	case strings.Contains(strings.ToLower(ua.Device), "samsung"):
		return "Samsung"
	default:
		return ""
	}
}
