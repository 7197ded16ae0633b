package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/pmx/internal/server"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 2 * time.Minute

// AuthGoogle runs the authorization code flow against a local callback listener and stores the
// resulting token at destination.token_path.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Destination
	if config.ClientID == "" || config.ClientSecret == "" {
		return fmt.Errorf("%w: destination.client_id and destination.client_secret are required", shared.ErrMissingCredentials)
	}

	tokenPath, err := shared.ExpandPath(config.TokenPath)
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(services.GoogleOAuthConfig(config.ClientID, config.ClientSecret, config.RedirectURI))
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv, serverErrors, err := server.Listen(addr, router)
	if err != nil {
		return err
	}
	defer func() {
		if err := server.Shutdown(srv); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()
	r.logger.Debug("started OAuth callback listener", "addr", addr)

	authURL := handler.AuthCodeURL()
	r.writePlain("→ Opening browser for Google Photos authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	wait := cmd.Duration("timeout")
	if wait <= 0 {
		wait = defaultAuthTimeout
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", wait)

	timeout := time.NewTimer(wait)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, wait)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Err != nil {
		return fmt.Errorf("authorization failed: %w", result.Err)
	}
	if result.Token == nil {
		return fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	if err := services.SaveToken(tokenPath, result.Token); err != nil {
		return err
	}
	r.logger.Info("token saved", "path", tokenPath)
	return r.writePlain("✓ Google Photos authorized, token saved to %s\n", tokenPath)
}

// AuthFlickr runs the out-of-band OAuth 1.0a flow: the user authorizes in the browser and pastes the
// verification code back. The access token and the account id are written to the config file.
func (r *Runner) AuthFlickr(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Source
	if config.APIKey == "" || config.APISecret == "" {
		return fmt.Errorf("%w: source.api_key and source.api_secret are required", shared.ErrMissingCredentials)
	}

	flow := &services.OAuth1Flow{
		BaseURL:        config.BaseURL,
		ConsumerKey:    config.APIKey,
		ConsumerSecret: config.APISecret,
		HTTPClient:     r.httpClient,
	}

	token, secret, err := flow.RequestToken(ctx)
	if err != nil {
		return err
	}

	authURL := flow.AuthorizeURL(token)
	r.writePlain("→ Opening browser for Flickr authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	verifier, err := r.prompt("Verification code: ")
	if err != nil {
		return err
	}
	if verifier == "" {
		return fmt.Errorf("%w: verification code", shared.ErrMissingArgument)
	}

	access, err := flow.AccessToken(ctx, token, secret, verifier)
	if err != nil {
		return err
	}

	r.config.Source.OAuthToken = access.Token
	r.config.Source.OAuthTokenSecret = access.TokenSecret
	if r.config.Source.UserID == "" {
		r.config.Source.UserID = access.UserNSID
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}

	r.logger.Info("flickr token saved", "user", access.UserNSID, "path", r.configPath)
	return r.writePlain("✓ Flickr authorized as %s (%s)\n", access.Username, access.UserNSID)
}
