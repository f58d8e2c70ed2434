package track

import (
	"testing"
	"unsafe"
)

func headerMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestExtractRequestContext_ForwardedFor(t *testing.T) {
	rc := ExtractRequestContext(headerMap(map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.1, 10.0.0.2",
		"X-Real-IP":       "198.51.100.1",
		"User-Agent":      "Mozilla/5.0",
	}))

	if rc.IP != "203.0.113.7" {
		t.Fatalf("expected first forwarded-for entry, got %q", rc.IP)
	}
	if rc.UserAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected user agent %q", rc.UserAgent)
	}
}

func TestExtractRequestContext_RealIPFallback(t *testing.T) {
	rc := ExtractRequestContext(headerMap(map[string]string{
		"X-Real-IP": "198.51.100.1",
	}))

	if rc.IP != "198.51.100.1" {
		t.Fatalf("expected real-ip fallback, got %q", rc.IP)
	}
}

func TestExtractRequestContext_Unknowns(t *testing.T) {
	rc := ExtractRequestContext(headerMap(nil))

	if rc.IP != "unknown" {
		t.Fatalf("expected unknown ip, got %q", rc.IP)
	}
	if rc.UserAgent != "unknown" {
		t.Fatalf("expected unknown user agent, got %q", rc.UserAgent)
	}
	if rc.Country != nil || rc.Region != nil || rc.City != nil {
		t.Fatal("expected nil geo fields when headers are absent")
	}
}

func TestExtractRequestContext_Geo(t *testing.T) {
	rc := ExtractRequestContext(headerMap(map[string]string{
		"X-Vercel-IP-Country": "US",
		"X-Vercel-IP-Region":  "CO",
		"X-Vercel-IP-City":    "Denver",
	}))

	if rc.Country == nil || *rc.Country != "US" {
		t.Fatalf("expected country US, got %v", rc.Country)
	}
	if rc.Region == nil || *rc.Region != "CO" {
		t.Fatalf("expected region CO, got %v", rc.Region)
	}
	if rc.City == nil || *rc.City != "Denver" {
		t.Fatalf("expected city Denver, got %v", rc.City)
	}
}

// Fasthttp reuses the connection read buffer between keep-alive requests, so
// header strings handed to the extractor may be rewritten in place once the
// next request is parsed. The extracted context must hold private copies.
func TestExtractRequestContext_SurvivesBufferReuse(t *testing.T) {
	aliased := func(s string) (string, []byte) {
		buf := []byte(s)
		return unsafe.String(unsafe.SliceData(buf), len(buf)), buf
	}

	ua, uaBuf := aliased("AgentA-aaaaaaaaa")
	ip, ipBuf := aliased("203.0.113.7, 10.0.0.1")
	ref, refBuf := aliased("https://www.google.com/search?q=x")
	country, countryBuf := aliased("US")

	rc := ExtractRequestContext(headerMap(map[string]string{
		"User-Agent":          ua,
		"X-Forwarded-For":     ip,
		"Referer":             ref,
		"X-Vercel-IP-Country": country,
	}))

	// Next request on the same connection overwrites the buffers.
	copy(uaBuf, "AgentB-bbbbbbbbb")
	copy(ipBuf, "198.51.100.9, 10.0.0.2")
	copy(refBuf, "https://t.co/zzzzzzzzzzzzzzzzzzzzzzzzzz")
	copy(countryBuf, "DE")

	if rc.UserAgent != "AgentA-aaaaaaaaa" {
		t.Fatalf("user agent mutated after buffer reuse: %q", rc.UserAgent)
	}
	if rc.IP != "203.0.113.7" {
		t.Fatalf("ip mutated after buffer reuse: %q", rc.IP)
	}
	if rc.Referrer != "https://www.google.com/search?q=x" {
		t.Fatalf("referrer mutated after buffer reuse: %q", rc.Referrer)
	}
	if rc.Country == nil || *rc.Country != "US" {
		t.Fatalf("country mutated after buffer reuse: %v", rc.Country)
	}
}

func TestExtractRequestContext_Referrer(t *testing.T) {
	rc := ExtractRequestContext(headerMap(map[string]string{
		"Referer": "https://www.google.com/search?q=x",
	}))

	if rc.Referrer != "https://www.google.com/search?q=x" {
		t.Fatalf("unexpected referrer %q", rc.Referrer)
	}
}
