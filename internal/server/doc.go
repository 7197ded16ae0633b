// Package server runs the short-lived HTTP listener used by `pmx auth google`.
//
// # Router
//
// [BasicRouter] implements [Router] on top of [http.ServeMux] with per-route method filtering and a
// [Middleware] stack; the last middleware added runs innermost.
//
// # OAuth Callback
//
// [OAuthHandler] completes the authorization code flow for the destination library. It issues the
// authorization URL with a random state and a PKCE challenge, validates the state on the callback,
// exchanges the code and delivers exactly one [OAuthResult] on its channel. Later callbacks are
// rejected.
//
// [Listen] starts the listener and [Shutdown] stops it once the result has arrived.
package server
