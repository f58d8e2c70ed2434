package track

import "strings"

// Header names populated by the edge network in front of the service.
const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
	headerUserAgent    = "User-Agent"
	headerGeoCountry   = "X-Vercel-IP-Country"
	headerGeoRegion    = "X-Vercel-IP-Region"
	headerGeoCity      = "X-Vercel-IP-City"
)

// unknownValue stands in for telemetry the transport did not provide.
const unknownValue = "unknown"

// RequestContext carries the request metadata a scan event is derived from.
// IP and UserAgent are never empty; geo fields are nil when the edge provided
// no geo headers, which is distinct from an empty value.
type RequestContext struct {
	IP        string
	UserAgent string
	Referrer  string
	Country   *string
	Region    *string
	City      *string
}

// ExtractRequestContext derives the scan context from a header lookup.
// It never fails: missing data degrades to "unknown" or nil.
//
// Every value is copied out of the lookup's backing storage. Fasthttp hands
// out header strings aliased to the connection read buffer, and the context
// outlives the request on the async recording path.
func ExtractRequestContext(header func(key string) string) RequestContext {
	get := func(key string) string { return strings.Clone(header(key)) }

	rc := RequestContext{
		IP:        unknownValue,
		UserAgent: unknownValue,
		Referrer:  get("Referer"),
	}

	if fwd := get(headerForwardedFor); fwd != "" {
		// First entry is the client; the rest are proxies.
		rc.IP = strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	} else if real := get(headerRealIP); real != "" {
		rc.IP = real
	}
	if rc.IP == "" {
		rc.IP = unknownValue
	}

	if ua := get(headerUserAgent); ua != "" {
		rc.UserAgent = ua
	}

	rc.Country = optional(get(headerGeoCountry))
	rc.Region = optional(get(headerGeoRegion))
	rc.City = optional(get(headerGeoCity))

	return rc
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
