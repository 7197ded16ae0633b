package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/pmx/internal/shared"
)

// OAuthResult is the outcome of one authorization attempt.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

// OAuthHandler serves the redirect URI of an authorization code flow with PKCE.
type OAuthHandler struct {
	config   *oauth2.Config
	state    string
	verifier string
	path     string
	results  chan OAuthResult
	once     sync.Once
	mu       sync.Mutex
	handled  bool
}

// NewOAuthHandler creates a handler for config. The callback path is taken from config.RedirectURL
// and defaults to /callback.
func NewOAuthHandler(config *oauth2.Config) *OAuthHandler {
	path := "/callback"
	if u, err := url.Parse(config.RedirectURL); err == nil && u.Path != "" && u.Path != "/" {
		path = u.Path
	}
	return &OAuthHandler{
		config:   config,
		state:    shared.GenerateID(),
		verifier: oauth2.GenerateVerifier(),
		path:     path,
		results:  make(chan OAuthResult, 1),
	}
}

// AuthCodeURL is the consent page the user must visit. Offline access is requested so the stored
// token carries a refresh token.
func (h *OAuthHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(h.verifier),
	)
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.handled = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.send(OAuthResult{Err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.send(OAuthResult{Err: fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code, oauth2.VerifierOption(h.verifier))
	if err != nil {
		h.send(OAuthResult{Err: fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	successPage.Execute(w, "Google Photos")
}

func (h *OAuthHandler) send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result delivers exactly one result, then is closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><title>pmx: authorized</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
  <h1>Connected to {{.}}</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`))
