package llm

import (
	"net/http"
	"time"
)

// headerTransport adds fixed headers to every outgoing request.
// OpenRouter uses HTTP-Referer and X-Title to attribute traffic to an application.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" && clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}

// newHTTPClient returns a client that attaches the attribution headers.
// Per-request deadlines come from the caller's context; timeout is a backstop.
func newHTTPClient(siteURL, appName string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": siteURL,
				"X-Title":      appName,
			},
		},
	}
}
