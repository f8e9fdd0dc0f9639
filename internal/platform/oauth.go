package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
)

// Token is the platform's answer to an OAuth code exchange
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Account is the platform-side identity a token belongs to
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Video is one entry of a remote video listing
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedTime string `json:"created_time"`
}

// AuthorizeURL builds the URL a browser is redirected to for consent
func (c *Client) AuthorizeURL(state string) string {
	query := url.Values{
		"client_id":     {c.appID},
		"redirect_uri":  {c.redirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return fmt.Sprintf("%s/oauth/authorize?%s", c.baseURL, query.Encode())
}

// ExchangeCode trades an authorization code for an access token
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code must not be empty")
	}

	query := url.Values{
		"client_id":     {c.appID},
		"client_secret": {c.appSecret},
		"redirect_uri":  {c.redirectURL},
		"code":          {code},
	}

	var token Token
	if err := c.getJSON(ctx, fmt.Sprintf("%s/oauth/access_token?%s", c.baseURL, query.Encode()), &token); err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &token, nil
}

// GetAccount fetches the identity behind an access token
func (c *Client) GetAccount(ctx context.Context, token string) (*Account, error) {
	query := url.Values{
		"fields":       {"id,name"},
		"access_token": {token},
	}

	var account Account
	if err := c.getJSON(ctx, fmt.Sprintf("%s/me?%s", c.baseURL, query.Encode()), &account); err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &account, nil
}

// ListVideos fetches remote video metadata for a target
func (c *Client) ListVideos(ctx context.Context, targetID, token string) ([]Video, error) {
	query := url.Values{
		"fields":       {"id,title,description,created_time"},
		"access_token": {token},
	}

	var body struct {
		Data []Video `json:"data"`
	}
	if err := c.getJSON(ctx, c.videosURL(targetID)+"?"+query.Encode(), &body); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return body.Data, nil
}

// getJSON performs an idempotent GET through the retrying client
func (c *Client) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
