// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package client

import (
	"context"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies the signed-in user a token belongs to.
type Principal struct {
	Subject string
	Email   string
}

// TokenProvider supplies bearer tokens for the request client. It is injected
// explicitly; the client holds no ambient authentication state.
//
// Implementations wrap whatever identity backend issues tokens (out of scope
// here): Principal reports the current signed-in principal or nil, Token
// resolves a fresh bearer token and may suspend while the underlying
// authentication state settles, and Subscribe registers a callback for
// auth-state transitions (a nil principal means signed out).
type TokenProvider interface {
	Principal() *Principal
	Token(ctx context.Context) (string, error)
	Subscribe(fn func(*Principal)) (unsubscribe func())
}

// StaticTokenProvider serves a fixed signed JWT. Used by tooling and tests;
// it inspects the token's registered claims (without verifying the signature,
// which is the server's job) to report the principal and refuse expired
// tokens.
type StaticTokenProvider struct {
	token     string
	principal *Principal
	parser    *jwt.Parser
}

// NewStaticTokenProvider builds a provider around a signed JWT string.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, &AuthError{Message: "malformed bearer token: " + err.Error()}
	}

	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	return &StaticTokenProvider{
		token:     token,
		principal: &Principal{Subject: sub, Email: email},
		parser:    parser,
	}, nil
}

// Principal returns the token's subject.
func (p *StaticTokenProvider) Principal() *Principal {
	return p.principal
}

// Token returns the stored token, failing with an AuthError once it expires.
func (p *StaticTokenProvider) Token(_ context.Context) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := p.parser.ParseUnverified(p.token, claims); err != nil {
		return "", &AuthError{Message: "malformed bearer token: " + err.Error()}
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && exp.Before(nowFunc()) {
		return "", &AuthError{Message: "bearer token expired"}
	}
	return p.token, nil
}

// Subscribe is a no-op: a static provider never transitions.
func (p *StaticTokenProvider) Subscribe(func(*Principal)) func() {
	return func() {}
}

// FakeTokenProvider is a mutable provider for tests: state transitions pushed
// through SignIn/SignOut fan out to subscribers.
type FakeTokenProvider struct {
	mu        sync.Mutex
	principal *Principal
	token     string
	nextID    int
	subs      map[int]func(*Principal)
}

// NewFakeTokenProvider returns a provider in the signed-out state.
func NewFakeTokenProvider() *FakeTokenProvider {
	return &FakeTokenProvider{subs: make(map[int]func(*Principal))}
}

// Principal returns the current principal, or nil when signed out.
func (p *FakeTokenProvider) Principal() *Principal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.principal
}

// Token returns the current token, or an AuthError when signed out.
func (p *FakeTokenProvider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.principal == nil {
		return "", &AuthError{Message: "no authenticated principal"}
	}
	return p.token, nil
}

// Subscribe registers fn for auth-state transitions.
func (p *FakeTokenProvider) Subscribe(fn func(*Principal)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// SignIn transitions to the signed-in state and notifies subscribers.
func (p *FakeTokenProvider) SignIn(principal *Principal, token string) {
	p.mu.Lock()
	p.principal = principal
	p.token = token
	subs := make([]func(*Principal), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(principal)
	}
}

// SignOut transitions to the signed-out state and notifies subscribers.
func (p *FakeTokenProvider) SignOut() {
	p.mu.Lock()
	p.principal = nil
	p.token = ""
	subs := make([]func(*Principal), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}
