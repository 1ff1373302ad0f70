// Package domainutil resolves URLs to the registrable domain used as
// the attribution key for tracked time.
package domainutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	errEmptyURL = errors.New("url is empty")
	errNoHost   = errors.New("url has no host")

	// ErrUntrackable marks a well-formed URL whose scheme never counts
	// towards browsing time, e.g. browser-internal pages. Callers treat
	// it as "nothing trackable is in focus" rather than as bad input.
	ErrUntrackable = errors.New("url scheme is not trackable")
)

// trackableSchemes are the only schemes that count towards browsing
// time. Internal browser pages (chrome://, about:, extension pages)
// must never produce sessions.
var trackableSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// Registrable extracts the registrable domain (eTLD+1) from a raw URL,
// e.g. "https://www.youtube.com/watch?v=x" -> "youtube.com". IP hosts
// and single-label hosts such as "localhost" are returned verbatim.
func Registrable(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unparseable url: %w", err)
	}

	if !trackableSchemes[u.Scheme] {
		return "", fmt.Errorf("%w: %s", ErrUntrackable, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errNoHost
	}

	if net.ParseIP(host) != nil {
		return host, nil
	}

	if !strings.Contains(host, ".") {
		return host, nil
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("no registrable domain in %q: %w", host, err)
	}

	return domain, nil
}
