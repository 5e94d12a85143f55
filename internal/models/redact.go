package models

import "net/url"

// RedactURL hides everything after the host of a URL so that feed tokens
// and webhook secrets do not end up in logs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if u != nil && u.Scheme != "" && u.Opaque != "" {
			return u.Scheme + ":...(redacted)"
		}
		return "...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
