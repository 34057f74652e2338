package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// tokenSource issues access tokens from /oauth2/tokenP. The broker rate-limits
// issuance, so it is always wrapped in oauth2.ReuseTokenSource.
type tokenSource struct {
	c *Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     ts.c.appKey,
		"appsecret":  ts.c.appSecret,
	})
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		ts.c.endpoint("/oauth2/tokenP", nil), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := ts.c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request: %s: %s", resp.Status, string(b))
	}

	var tr tokenResponse
	if err := json.Unmarshal(b, &tr); err != nil {
		return nil, fmt.Errorf("token decode: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, ErrNoToken
	}
	ts.c.log.Info().Int64("expires_in", tr.ExpiresIn).Msg("kis access token issued")

	tok := &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tr.TokenType}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}
