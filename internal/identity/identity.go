// Package identity is the boundary to the third-party identity provider.
// The provider's own sign-in flow is opaque; only the identity token it
// yields is used.
package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the provider yields no identity token.
var ErrNoIDToken = errors.New("identity provider returned no id_token")

// Assertion is the result of a provider sign-in.
type Assertion struct {
	IDToken string
}

// Provider performs a sign-in and returns an identity assertion.
type Provider interface {
	SignIn(ctx context.Context) (Assertion, error)
}

// StaticProvider returns a preconfigured identity token.
type StaticProvider struct {
	IDToken string
}

func (p StaticProvider) SignIn(context.Context) (Assertion, error) {
	tok := strings.TrimSpace(p.IDToken)
	if tok == "" {
		return Assertion{}, ErrNoIDToken
	}
	return Assertion{IDToken: tok}, nil
}

// OAuth2Provider reads the OpenID Connect id_token carried as an extra field
// of an OAuth2 token.
type OAuth2Provider struct {
	Source oauth2.TokenSource
}

// NewRefreshTokenProvider signs in by redeeming a stored refresh token at
// conf's token endpoint.
func NewRefreshTokenProvider(ctx context.Context, conf *oauth2.Config, refreshToken string) OAuth2Provider {
	return OAuth2Provider{Source: conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})}
}

func (p OAuth2Provider) SignIn(ctx context.Context) (Assertion, error) {
	if err := ctx.Err(); err != nil {
		return Assertion{}, err
	}
	tok, err := p.Source.Token()
	if err != nil {
		return Assertion{}, err
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return Assertion{}, ErrNoIDToken
	}
	return Assertion{IDToken: idToken}, nil
}
