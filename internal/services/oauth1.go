package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/desertthunder/pmx/internal/shared"
)

// OAuth1 signs source requests with an OAuth 1.0a access token (HMAC-SHA1).
//
// Signing happens in the transport returned by [OAuth1.Client]; Apply only checks that the
// consumer credentials are present.
type OAuth1 struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

func (o *OAuth1) Apply(*http.Request) error {
	if o.ConsumerKey == "" || o.ConsumerSecret == "" {
		return fmt.Errorf("%w: oauth consumer key and secret are required", shared.ErrMissingCredentials)
	}
	return nil
}

// Client wraps base in a transport that signs every request it sends.
func (o *OAuth1) Client(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	client := oauth1.NewConfig(o.ConsumerKey, o.ConsumerSecret).Client(ctx, oauth1.NewToken(o.Token, o.TokenSecret))
	client.Timeout = base.Timeout
	return client
}

// AccessToken is the result of a completed OAuth 1.0a flow.
type AccessToken struct {
	Token       string
	TokenSecret string
	UserNSID    string
	Username    string
}

// OAuth1Flow runs the out-of-band three-legged OAuth 1.0a flow against Flickr.
type OAuth1Flow struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

func (f *OAuth1Flow) base() string {
	if f.BaseURL == "" {
		return flickrBaseURL
	}
	return strings.TrimSuffix(f.BaseURL, "/")
}

func (f *OAuth1Flow) client() *http.Client {
	if f.HTTPClient == nil {
		return http.DefaultClient
	}
	return f.HTTPClient
}

func (f *OAuth1Flow) config() *oauth1.Config {
	base := f.base()
	return &oauth1.Config{
		ConsumerKey:    f.ConsumerKey,
		ConsumerSecret: f.ConsumerSecret,
		CallbackURL:    "oob",
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: base + "/oauth/request_token",
			AuthorizeURL:    base + "/oauth/authorize",
			AccessTokenURL:  base + "/oauth/access_token",
		},
		HTTPClient: f.client(),
	}
}

// RequestToken obtains a temporary token for the oob callback.
func (f *OAuth1Flow) RequestToken(ctx context.Context) (token, secret string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	token, secret, err = f.config().RequestToken()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, secret, nil
}

// AuthorizeURL is where the user grants read access to token.
func (f *OAuth1Flow) AuthorizeURL(token string) string {
	return f.base() + "/oauth/authorize?" + url.Values{"oauth_token": {token}, "perms": {"read"}}.Encode()
}

// AccessToken trades the temporary token and the user's verifier for a long-lived token, then
// identifies the account it belongs to.
func (f *OAuth1Flow) AccessToken(ctx context.Context, token, secret, verifier string) (*AccessToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	accessToken, accessSecret, err := f.config().AccessToken(token, secret, verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	access := &AccessToken{Token: accessToken, TokenSecret: accessSecret}
	if err := f.identify(ctx, access); err != nil {
		return nil, err
	}
	return access, nil
}

// identify fills in the account of access with a signed flickr.test.login call.
func (f *OAuth1Flow) identify(ctx context.Context, access *AccessToken) error {
	const method = "flickr.test.login"
	query := url.Values{
		"method":         {method},
		"api_key":        {f.ConsumerKey},
		"format":         {"json"},
		"nojsoncallback": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base()+"/rest/?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	signer := &OAuth1{ConsumerKey: f.ConsumerKey, ConsumerSecret: f.ConsumerSecret, Token: access.Token, TokenSecret: access.TokenSecret}
	resp, err := signer.Client(f.client()).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrAuthFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)})
	}

	var payload struct {
		User struct {
			ID       string  `json:"id"`
			Username Content `json:"username"`
		} `json:"user"`
	}
	if err := decodeFlickr(method, body, &payload); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if payload.User.ID == "" {
		return fmt.Errorf("%w: %s returned no user", shared.ErrAuthFailed, method)
	}
	access.UserNSID = payload.User.ID
	access.Username = payload.User.Username.Content
	return nil
}
