package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

const defaultMaxSourceBytes = 32 << 20

// HTTPFetcher downloads sources over HTTP. Relative sources are resolved
// against the application origin, and a redirect that changes origin is
// refused the way a browser taints a canvas.
type HTTPFetcher struct {
	client   *http.Client
	policy   OriginPolicy
	maxBytes int64
}

func NewHTTPFetcher(policy OriginPolicy, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("stopped after 5 redirects")
				}
				if policy.Mode() != ModeAlways && !SameOrigin(via[0].URL, req.URL) {
					return &SecurityError{Source: via[0].URL.String(), Reason: "redirected to " + req.URL.Host}
				}
				return nil
			},
		},
		policy:   policy,
		maxBytes: defaultMaxSourceBytes,
	}
}

// RefusePrivateAddresses makes the fetcher refuse to connect to loopback,
// private, link-local and unspecified addresses. The check runs on the
// address actually dialed, after DNS resolution and on every redirect.
func (f *HTTPFetcher) RefusePrivateAddresses() *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivateAddress,
	}).DialContext
	f.client.Transport = transport
	return f
}

func refusePrivateAddress(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() || ip.IsInterfaceLocalMulticast() {
		return &SecurityError{Source: address, Reason: "private address " + ip.String()}
	}
	return nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	target, err := f.policy.Resolve(source)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var securityErr *SecurityError
		if errors.As(err, &securityErr) {
			return nil, securityErr
		}
		return nil, fmt.Errorf("fetch source %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch source %s: status=%d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", target, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrSourceTooLarge
	}
	return data, nil
}
