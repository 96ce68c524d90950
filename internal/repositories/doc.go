// Package repositories implements SQLite persistence.
//
// The only durable entity is the OAuth credential: [CredentialRepository] stores it as
// a JSON payload in the credentials table, keyed by storage key, and satisfies auth.TokenStore.
// The schema is created by shared.RunMigrations.
package repositories
