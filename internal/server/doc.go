// Package server provides HTTP routing, the OAuth loopback callback and the local control API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses
// [http.ServeMux] internally and dispatches on method per path.
//
// # OAuth Callback
//
// [LoopbackAuthorizer] starts a temporary server on the configured redirect URI, opens the
// browser on the authorization URL and waits (two minutes by default) for [OAuthHandler] to
// capture the code. The handler validates the state parameter and accepts a single callback.
// The code exchange happens in the auth package, which holds the PKCE verifier.
//
// # Control API
//
// [Server] serves the JSON routes of [API] under /api and the state stream at /ws.
// The stream is a gorilla/websocket [Hub]: each client receives a state_init envelope on
// connect and a state_changed envelope for every control loop update. Clients that cannot
// keep up are disconnected.
package server
