package main

import (
	"context"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/domain/braid"
)

// engineHealthAdapter reports the engine ready when it can still build a
// knot.  The trefoil is cached after the first build, so steady-state
// checks only touch the cache.
type engineHealthAdapter struct {
	svc     matching.Service
	trefoil braid.Word
}

func newEngineHealthAdapter(svc matching.Service) *engineHealthAdapter {
	return &engineHealthAdapter{svc: svc, trefoil: braid.MustNew(2, 1, 1, 1)}
}

func (a *engineHealthAdapter) Name() string {
	return "engine"
}

func (a *engineHealthAdapter) Check(ctx context.Context) error {
	_, err := a.svc.BuildFromWord(ctx, a.trefoil)
	return err
}
