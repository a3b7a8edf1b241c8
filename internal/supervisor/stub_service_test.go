// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// errSimulated is returned by a stubService while it has failures left.
var errSimulated = errors.New("simulated failure")

// stubService is a controllable suture.Service for tree tests.
type stubService struct {
	name     string
	starts   atomic.Int32
	failures atomic.Int32
}

func newStubService(name string, failures int32) *stubService {
	s := &stubService{name: name}
	s.failures.Store(failures)
	return s
}

func (s *stubService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	if s.failures.Add(-1) >= 0 {
		return errSimulated
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string {
	return s.name
}
