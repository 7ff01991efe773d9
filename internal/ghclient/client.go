// Package ghclient is Firewatch's GitHub Client (spec §4.2): a capability
// bundle over authenticated HTTP that hides pagination and transport
// errors behind typed results. Reads go through the GraphQL API
// (shurcooL/graphql), the pairing sirseer-relay uses for the same job;
// writes that have no GraphQL equivalent (or are simpler via REST) go
// through google/go-github. The client is stateless apart from the
// bearer token.
package ghclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/shurcooL/graphql"

	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
)

// maxRetries bounds how many times a transient failure is retried after the
// first attempt, so one call makes at most maxRetries+1 attempts.
const maxRetries = 3

// Client is the GitHub Client described by spec §4.2.
type Client struct {
	gql  *graphql.Client
	rest *github.Client
}

// New builds a Client authenticated with token. endpoint overrides the
// GraphQL endpoint for GitHub Enterprise; pass "" for github.com.
func New(token, endpoint string) *Client {
	if endpoint == "" {
		endpoint = "https://api.github.com/graphql"
	}

	transport := &authTransport{
		token: token,
		base: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	httpClient := &http.Client{Transport: transport}

	return &Client{
		gql:  graphql.NewClient(endpoint, httpClient),
		rest: github.NewClient(httpClient),
	}
}

// authTransport attaches the bearer token and a user agent to every
// outgoing request, grounded on sirseer-relay's internal/github
// authTransport.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("User-Agent", "firewatch")
	return t.base.RoundTrip(req)
}

// withRetry runs fn, retrying transient failures with exponential backoff
// and jitter up to maxRetries times. RateLimitError is never retried: it is
// returned to the caller, carrying its ResetAt.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !ferrors.IsRetryable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return err
}

// mapGraphQLError classifies a GraphQL transport/response error into the
// closed error taxonomy from spec §7.
func mapGraphQLError(err error, what string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "bad credentials"):
		return &ferrors.AuthError{Msg: "GitHub rejected the credential", Err: err}
	case strings.Contains(lower, "403") && strings.Contains(lower, "rate limit"):
		return &ferrors.RateLimitError{ResetAt: time.Now().Add(time.Minute), Err: err}
	case strings.Contains(lower, "404") || strings.Contains(lower, "could not resolve"):
		return &ferrors.NotFoundError{What: what, Err: err}
	case strings.Contains(lower, "already") || strings.Contains(lower, "duplicate"):
		return &ferrors.ConflictError{Msg: what, Err: err}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "connection") || strings.Contains(lower, "eof"):
		return &ferrors.NetworkError{Msg: "graphql request to " + what, Err: err}
	default:
		return &ferrors.PermanentError{Msg: "graphql: " + what, Err: err}
	}
}

// mapRESTError classifies a go-github REST error response.
func mapRESTError(err error, what string) error {
	if err == nil {
		return nil
	}
	if rl, ok := err.(*github.RateLimitError); ok {
		return &ferrors.RateLimitError{ResetAt: rl.Rate.Reset.Time, Err: err}
	}
	if ae, ok := err.(*github.AbuseRateLimitError); ok {
		reset := time.Now().Add(time.Minute)
		if ae.RetryAfter != nil {
			reset = time.Now().Add(*ae.RetryAfter)
		}
		return &ferrors.RateLimitError{ResetAt: reset, Err: err}
	}
	if er, ok := err.(*github.ErrorResponse); ok {
		switch er.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &ferrors.AuthError{Msg: "GitHub rejected the credential for " + what, Err: err}
		case http.StatusNotFound:
			return &ferrors.NotFoundError{What: what, Err: err}
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return &ferrors.ConflictError{Msg: what, Err: err}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &ferrors.NetworkError{Msg: fmt.Sprintf("%s: %d", what, er.Response.StatusCode), Err: err}
		}
	}
	return &ferrors.PermanentError{Msg: what, Err: err}
}
