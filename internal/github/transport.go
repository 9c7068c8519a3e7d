package github

import (
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v76/github"
	"golang.org/x/oauth2"
)

// tokenTransport asks the broker for a token on every request, so a long
// lived client never sends an expired one. A 401 invalidates the token that
// was sent.
type tokenTransport struct {
	broker *Broker
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.broker.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	inner := &oauth2.Transport{Source: oauth2.StaticTokenSource(tok.asOAuth2()), Base: t.base}
	resp, err := inner.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		t.broker.Invalidate(tok.Value)
	}
	return resp, err
}

func newRESTClient(hc *http.Client, apiURL string) (*gh.Client, error) {
	c := gh.NewClient(hc)
	if apiURL == "" {
		return c, nil
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c.BaseURL = u
	return c, nil
}
