package pipeline

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

type ProcessingMode string

const (
	// ModeOrigin processes same-origin and relative sources locally and
	// defers everything else, matching browser canvas rules.
	ModeOrigin ProcessingMode = "origin"
	// ModeAlways processes every source locally.
	ModeAlways ProcessingMode = "always"
	// ModeNever always defers pixel work to the remote endpoint.
	ModeNever ProcessingMode = "never"
)

func ParseProcessingMode(raw string) (ProcessingMode, error) {
	switch ProcessingMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeOrigin:
		return ModeOrigin, nil
	case ModeAlways:
		return ModeAlways, nil
	case ModeNever:
		return ModeNever, nil
	default:
		return "", fmt.Errorf("unsupported processing mode: %s", raw)
	}
}

type origin struct {
	scheme string
	host   string
	port   string
}

// OriginPolicy decides whether a source may be read pixel by pixel.
type OriginPolicy struct {
	mode ProcessingMode
	app  *origin
}

func NewOriginPolicy(appOrigin string, mode ProcessingMode) (OriginPolicy, error) {
	p := OriginPolicy{mode: mode}
	if p.mode == "" {
		p.mode = ModeOrigin
	}

	appOrigin = strings.TrimSpace(appOrigin)
	if appOrigin == "" {
		return p, nil
	}

	u, err := url.Parse(appOrigin)
	if err != nil {
		return OriginPolicy{}, fmt.Errorf("parse application origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return OriginPolicy{}, fmt.Errorf("application origin must be absolute: %s", appOrigin)
	}
	o := originOf(u, u.Scheme)
	p.app = &o
	return p, nil
}

func (p OriginPolicy) Mode() ProcessingMode {
	return p.mode
}

// CanProcessLocally is a pure function of sourceURL and the application
// origin.
func (p OriginPolicy) CanProcessLocally(sourceURL string) bool {
	switch p.mode {
	case ModeAlways:
		return strings.TrimSpace(sourceURL) != ""
	case ModeNever:
		return false
	}

	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return false
	}

	lower := strings.ToLower(sourceURL)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:") {
		return true
	}

	u, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}

	if u.Scheme == "" && u.Host == "" {
		return true
	}
	if p.app == nil {
		return false
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = p.app.scheme
	}
	return originOf(u, scheme) == *p.app
}

// SameOrigin reports whether two absolute URLs share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return originOf(a, a.Scheme) == originOf(b, b.Scheme)
}

func originOf(u *url.URL, scheme string) origin {
	scheme = strings.ToLower(scheme)
	port := u.Port()
	if port == "" {
		port = defaultPort(scheme)
	}
	return origin{
		scheme: scheme,
		host:   strings.ToLower(strings.TrimSuffix(u.Hostname(), ".")),
		port:   port,
	}
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	default:
		return ""
	}
}

// base renders the origin as scheme://host[:port].
func (o origin) base() string {
	host := o.host
	if o.port != "" && o.port != defaultPort(o.scheme) {
		host = net.JoinHostPort(o.host, o.port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return o.scheme + "://" + host
}

// Resolve turns a relative source into an absolute URL on the application
// origin. Absolute sources are returned unchanged.
func (p OriginPolicy) Resolve(sourceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if p.app == nil {
		return "", fmt.Errorf("relative source %q requires an application origin", sourceURL)
	}
	if u.Host != "" {
		u.Scheme = p.app.scheme
		return u.String(), nil
	}
	base, err := url.Parse(p.app.base() + "/")
	if err != nil {
		return "", fmt.Errorf("parse application origin: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}
