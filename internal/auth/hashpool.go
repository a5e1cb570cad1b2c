// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"

	"github.com/samber/oops"
)

// DefaultHashPoolSize is the default number of concurrent hashing slots.
const DefaultHashPoolSize = 4

// PoolHasher wraps a PasswordHasher with a bounded concurrency limit.
// Argon2id is CPU- and memory-bound; without a bound, a burst of sign-ups
// can spawn enough concurrent hashing to starve request handling. Callers
// queue on a slot instead, which gives natural backpressure.
type PoolHasher struct {
	inner PasswordHasher
	slots chan struct{}
}

// NewPoolHasher creates a PoolHasher with the given number of slots.
func NewPoolHasher(inner PasswordHasher, size int) (*PoolHasher, error) {
	if inner == nil {
		return nil, oops.Errorf("inner hasher is required")
	}
	if size <= 0 {
		size = DefaultHashPoolSize
	}
	return &PoolHasher{
		inner: inner,
		slots: make(chan struct{}, size),
	}, nil
}

// HashContext hashes the password, waiting for a free slot or context cancellation.
func (p *PoolHasher) HashContext(ctx context.Context, password string) (string, error) {
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()
	return p.inner.Hash(password)
}

// VerifyContext verifies the password, waiting for a free slot or context cancellation.
func (p *PoolHasher) VerifyContext(ctx context.Context, password, hash string) (bool, error) {
	if err := p.acquire(ctx); err != nil {
		return false, err
	}
	defer p.release()
	return p.inner.Verify(password, hash)
}

// Hash implements PasswordHasher. It blocks until a slot is free.
func (p *PoolHasher) Hash(password string) (string, error) {
	return p.HashContext(context.Background(), password)
}

// Verify implements PasswordHasher. It blocks until a slot is free.
func (p *PoolHasher) Verify(password, hash string) (bool, error) {
	return p.VerifyContext(context.Background(), password, hash)
}

func (p *PoolHasher) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return oops.Code("AUTH_HASH_CANCELED").Wrap(ctx.Err())
	}
}

func (p *PoolHasher) release() {
	<-p.slots
}

// Compile-time interface check.
var _ PasswordHasher = (*PoolHasher)(nil)
