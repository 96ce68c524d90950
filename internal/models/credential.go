package models

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Credential is the stored OAuth credential.
//
// A Credential must never be used once now >= ExpiresAt; it is refreshed first.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type credentialJSON struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Expired reports whether the access token may no longer be used at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// MarshalJSON writes the persisted layout {accessToken, refreshToken, expiresAt} with expiresAt in epoch milliseconds.
func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialJSON{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt.UnixMilli(),
	})
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var raw credentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.AccessToken == "" {
		return fmt.Errorf("credential missing accessToken")
	}
	c.AccessToken = raw.AccessToken
	c.RefreshToken = raw.RefreshToken
	c.ExpiresAt = time.UnixMilli(raw.ExpiresAt)
	return nil
}

// CredentialFromToken converts an [oauth2.Token] into a Credential.
//
// Tokens without an expiry are given defaultTTL from now.
func CredentialFromToken(tok *oauth2.Token, now time.Time, defaultTTL time.Duration) *Credential {
	expires := tok.Expiry
	if expires.IsZero() {
		expires = now.Add(defaultTTL)
	}
	return &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expires,
	}
}

// Token converts the Credential back into an [oauth2.Token].
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.ExpiresAt,
	}
}
