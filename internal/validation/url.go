// Package validation checks user-supplied URLs and filesystem paths before
// the portal fetches, opens or writes them.
package validation

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// ErrInvalidURL wraps every URL rejection.
var ErrInvalidURL = errors.New("invalid URL")

// URLValidator checks feed URLs and result target URLs.
type URLValidator struct {
	// AllowLocalhost permits loopback hosts.
	AllowLocalhost bool
	// AllowPrivateIPs permits private and link-local addresses.
	AllowPrivateIPs bool
	// MaxLength is the maximum accepted URL length.
	MaxLength int
}

// NewURLValidator creates a validator with secure defaults
func NewURLValidator() *URLValidator {
	return &URLValidator{MaxLength: 2048}
}

// NewPermissiveURLValidator allows local development hosts.
func NewPermissiveURLValidator() *URLValidator {
	return &URLValidator{
		AllowLocalhost:  true,
		AllowPrivateIPs: true,
		MaxLength:       2048,
	}
}

// Normalize validates input and returns it in canonical form. A missing
// scheme defaults to https.
func (v *URLValidator) Normalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if v.MaxLength > 0 && len(input) > v.MaxLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'` \t\r\n") {
		return "", fmt.Errorf("%w: contains invalid characters", ErrInvalidURL)
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: credentials not allowed", ErrInvalidURL)
	}
	u.Host = strings.ToLower(u.Host)

	if err := v.checkHost(u.Hostname()); err != nil {
		return "", err
	}
	if strings.Contains(u.Path, "..") {
		return "", fmt.Errorf("%w: path traversal", ErrInvalidURL)
	}
	if q := strings.ToLower(u.RawQuery); strings.Contains(q, "<script") || strings.Contains(q, "javascript:") {
		return "", fmt.Errorf("%w: suspicious query", ErrInvalidURL)
	}
	u.Fragment = ""
	return u.String(), nil
}

func (v *URLValidator) checkHost(host string) error {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		if !v.AllowLocalhost {
			return fmt.Errorf("%w: localhost not permitted", ErrInvalidURL)
		}
		return nil
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		if strings.Trim(host, ".") == "" {
			return fmt.Errorf("%w: bad host %q", ErrInvalidURL, host)
		}
		return nil
	}
	addr = addr.Unmap()
	switch {
	case addr.IsUnspecified(), addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}):
		return fmt.Errorf("%w: address %s not routable", ErrInvalidURL, addr)
	case addr.IsLoopback():
		if !v.AllowLocalhost {
			return fmt.Errorf("%w: localhost not permitted", ErrInvalidURL)
		}
	case addr.IsPrivate(), addr.IsLinkLocalUnicast():
		if !v.AllowPrivateIPs {
			return fmt.Errorf("%w: private address not permitted", ErrInvalidURL)
		}
	}
	return nil
}
