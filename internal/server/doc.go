// Package server intercepts the OAuth2 redirect on a loopback HTTP listener.
//
// # Router Infrastructure
//
// [Router] wraps [http.ServeMux] with a [Middleware] stack. Middleware wraps
// handlers in reverse order (last added executes first), following the
// standard Go pattern. Patterns use the method-aware ServeMux syntax
// ("GET /callback").
//
// # OAuth Callback Handler
//
// [OAuthHandler] turns the authorization server's redirect into a
// session.CallbackResult and hands it to a [CallbackFunc]
// (session.Manager.Callback), which validates the state nonce and exchanges
// the code. The handler never talks to the token endpoint itself.
//
// A callback carrying an unknown state is answered with 400 and ignored, so a
// stale browser tab cannot end the flow. Any other outcome, success or not,
// is delivered exactly once on [OAuthHandler.Result].
//
// # Current Usage
//
// "spotsync auth login" starts a [CallbackServer] on the configured loopback
// address, opens the authorization URL in the browser and waits on the
// handler's result before shutting the server down.
package server
