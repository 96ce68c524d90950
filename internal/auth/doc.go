// Package auth owns the Spotify OAuth credential lifecycle.
//
// # Controller
//
// [Controller] runs the PKCE authorization-code flow ([Controller.Login]), hands out
// access tokens on demand ([Controller.ValidToken]) and clears the session on
// [Controller.Logout].
//
// Refresh happens lazily: an expired credential is refreshed the first time a token
// is requested after expiry. Concurrent callers share a single in-flight refresh, and a
// refresh failure logs the user out instead of retrying.
//
// # Storage
//
// The credential is the only durable state. [TokenStore] implementations keep it under a
// fixed key:
//   - [MemoryStore] : process lifetime only
//   - [FileStore] : JSON file, one entry per key
//   - repositories.CredentialRepository : SQLite table
package auth
