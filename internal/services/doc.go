// Package services talks to the remote systems NeuroTune depends on.
//
// # Provider client
//
// [Client] wraps every Spotify Web API call: it obtains a bearer token from a [TokenProvider]
// (auth.Controller in production), paces requests through a rate limiter and normalizes
// responses. Failure handling:
//   - no token: [shared.KindUnauthenticated], no request is sent
//   - 401: [shared.KindSessionExpired], never retried
//   - 429: wait for Retry-After (default 1s) and try again without using an attempt
//   - 5xx, 408, transport errors: exponential backoff (1s, 2s, ...) up to MaxAttempts
//   - other 4xx: [shared.KindAPI] immediately
//   - 204: nil response
//
// # Player
//
// [Player] is the typed playback surface used by the control loop and the CLI.
// It swallows and logs everything except authentication failures.
//
// # Brainwave feed
//
// [BrainwaveClient] polls the EEG bridge over plain HTTP using resty.
package services
