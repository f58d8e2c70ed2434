package track

import (
	"net/url"
	"strings"
)

// Mediums assigned by Classify.
const (
	MediumNone     = "none"
	MediumInApp    = "inapp"
	MediumSocial   = "social"
	MediumOrganic  = "organic"
	MediumReferral = "referral"
	MediumUnknown  = "unknown"
)

// SourceDirect is reported when a scan arrives with no referrer at all.
const SourceDirect = "direct"

// Classification is the derived provenance of a scan.
type Classification struct {
	Source string
	Medium string
}

// In-app browser user-agent tokens, matched case-insensitively as substrings.
// FBAN/FBAV are the Facebook app webview markers.
var inAppTokens = []struct {
	token    string
	platform string
}{
	{"fban", "facebook"},
	{"fbav", "facebook"},
	{"fb_iab", "facebook"},
	{"instagram", "instagram"},
	{"twitter", "twitter"},
	{"linkedin", "linkedin"},
	{"whatsapp", "whatsapp"},
	{"snapchat", "snapchat"},
}

// Referrer hostnames of known social platforms, including their shorteners.
var socialDomains = map[string]string{
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"fb.me":         "facebook",
	"instagram.com": "instagram",
	"twitter.com":   "twitter",
	"t.co":          "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"lnkd.in":       "linkedin",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
	"pin.it":        "pinterest",
	"reddit.com":    "reddit",
}

// Search engines keyed by a hostname fragment. Google keeps country TLDs
// (google.com, google.de, ...), so it is matched on the "google." label.
var searchEngines = []struct {
	fragment string
	engine   string
}{
	{"google.", "google"},
	{"bing.com", "bing"},
	{"yahoo.com", "yahoo"},
	{"duckduckgo.com", "duckduckgo"},
}

// Classify maps a referrer URL and user agent to a {source, medium} pair.
// It is a total function: every input, including a malformed referrer,
// yields a classification. Rules are ordered; the first match wins:
//
//  1. no referrer                         -> {direct, none}
//  2. in-app browser user agent           -> {platform, inapp}
//  3. social platform referrer            -> {platform, social}
//  4. search engine referrer              -> {engine, organic}
//  5. any other parseable referrer        -> {hostname, referral}
//  6. referrer present but unparseable    -> {invalid, unknown}
//
// An in-app user agent outranks the referrer: a scan from the Instagram
// webview with a facebook.com referrer is still {instagram, inapp}.
func Classify(referrer, userAgent string) Classification {
	if referrer == "" {
		return Classification{Source: SourceDirect, Medium: MediumNone}
	}

	if inApp, platform := matchInApp(strings.ToLower(userAgent)); inApp {
		return Classification{Source: platform, Medium: MediumInApp}
	}

	host := referrerHost(referrer)
	if host == "" {
		return Classification{Source: "invalid", Medium: MediumUnknown}
	}

	if platform, ok := socialDomains[host]; ok {
		return Classification{Source: platform, Medium: MediumSocial}
	}

	for _, e := range searchEngines {
		if strings.Contains(host, e.fragment) {
			return Classification{Source: e.engine, Medium: MediumOrganic}
		}
	}

	return Classification{Source: host, Medium: MediumReferral}
}

func matchInApp(lowerUA string) (bool, string) {
	for _, t := range inAppTokens {
		if strings.Contains(lowerUA, t.token) {
			return true, t.platform
		}
	}
	return false, ""
}

// referrerHost extracts the lowercase hostname with any "www." prefix and
// port stripped. Returns "" for anything that does not look like a URL.
func referrerHost(referrer string) string {
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
