package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Tweet is the subset of an X API v2 post the social checks read.
type Tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	CreatedAt        time.Time         `json:"created_at"`
	ReferencedTweets []ReferencedTweet `json:"referenced_tweets,omitempty"`
}

type ReferencedTweet struct {
	Type string `json:"type"` // replied_to, quoted, retweeted
	ID   string `json:"id"`
}

// XAPI reads a linked account's activity with that account's OAuth access token.
type XAPI interface {
	RecentTweets(ctx context.Context, accessToken, userID string, since time.Time) ([]Tweet, error)
	IsFollowing(ctx context.Context, accessToken, userID, targetUsername string) (bool, error)
}

// XClient calls X API v2 with a shared rate limiter and bounded retries.
type XClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxRetries int
	// Following lists are paged; stop after this many pages.
	MaxFollowingPages int
}

func NewXClient(baseURL string, httpClient *http.Client, ratePerSecond float64, burst, maxRetries int) *XClient {
	if burst < 1 {
		burst = 1
	}
	return &XClient{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		HTTPClient:        httpClient,
		Limiter:           rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		MaxRetries:        maxRetries,
		MaxFollowingPages: 5,
	}
}

type xStatusError struct {
	Status int
	Body   string
}

func (e *xStatusError) Error() string {
	return fmt.Sprintf("x api returned status %d: %s", e.Status, e.Body)
}

// authorized wraps the base client with a bearer token transport.
func (c *XClient) authorized(ctx context.Context, accessToken string) *http.Client {
	base := c.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = base.Timeout
	return client
}

func (c *XClient) getJSON(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}
	u.RawQuery = query.Encode()
	client := c.authorized(ctx, accessToken)

	return withRetry(ctx, c.MaxRetries, func() error {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call x api: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w (status 401)", ErrSocialAuthExpired)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &xStatusError{Status: resp.StatusCode, Body: string(body)}
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(&xStatusError{Status: resp.StatusCode, Body: string(body)})
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode x api response: %w", err))
		}
		return nil
	})
}

func (c *XClient) RecentTweets(ctx context.Context, accessToken, userID string, since time.Time) ([]Tweet, error) {
	q := url.Values{}
	q.Set("max_results", "100")
	q.Set("start_time", since.UTC().Format(time.RFC3339))
	q.Set("tweet.fields", "created_at,referenced_tweets")

	var response struct {
		Data []Tweet `json:"data"`
	}
	if err := c.getJSON(ctx, accessToken, "/2/users/"+url.PathEscape(userID)+"/tweets", q, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (c *XClient) IsFollowing(ctx context.Context, accessToken, userID, targetUsername string) (bool, error) {
	target := strings.TrimPrefix(strings.ToLower(targetUsername), "@")
	next := ""
	for page := 0; page < c.MaxFollowingPages; page++ {
		q := url.Values{}
		q.Set("max_results", "1000")
		q.Set("user.fields", "username")
		if next != "" {
			q.Set("pagination_token", next)
		}

		var response struct {
			Data []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"data"`
			Meta struct {
				NextToken string `json:"next_token"`
			} `json:"meta"`
		}
		if err := c.getJSON(ctx, accessToken, "/2/users/"+url.PathEscape(userID)+"/following", q, &response); err != nil {
			return false, err
		}
		for _, u := range response.Data {
			if strings.ToLower(u.Username) == target {
				return true, nil
			}
		}
		if response.Meta.NextToken == "" {
			return false, nil
		}
		next = response.Meta.NextToken
	}
	return false, nil
}

// IsXStatus reports whether err carries the given X API HTTP status.
func IsXStatus(err error, status int) bool {
	var se *xStatusError
	return errors.As(err, &se) && se.Status == status
}
