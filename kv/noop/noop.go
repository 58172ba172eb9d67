// Package noop is a key-value store that keeps nothing: Exists always
// reports zero keys and Get always misses.
package noop

import (
	"context"
	"time"
)

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Get(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (s *Store) Set(_ context.Context, _ string, _ interface{}, _ time.Duration) error {
	return nil
}

func (s *Store) Delete(_ context.Context, _ ...string) error {
	return nil
}

func (s *Store) Exists(_ context.Context, _ ...string) (int64, error) {
	return 0, nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
