package command

import (
	"context"
	"fmt"

	"github.com/rhythmofsigns/progress-engine/internal/domain/badge"
)

// SeedBadgesHandler stores the built-in badge catalog and loads the result.
type SeedBadgesHandler struct {
	repo badge.Repository
}

// NewSeedBadgesHandler creates a SeedBadgesHandler.
func NewSeedBadgesHandler(repo badge.Repository) *SeedBadgesHandler {
	return &SeedBadgesHandler{repo: repo}
}

// SeedBadgesResult reports the seeded catalog.
type SeedBadgesResult struct {
	Created int
	Catalog *badge.Catalog
}

// Handle inserts missing default definitions and returns the stored catalog.
func (h *SeedBadgesHandler) Handle(ctx context.Context, defs []badge.Definition) (*SeedBadgesResult, error) {
	if defs == nil {
		defs = badge.DefaultCatalog()
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("badge %q: %w", d.Name, err)
		}
	}

	created, err := h.repo.SeedDefinitions(ctx, defs)
	if err != nil {
		return nil, fmt.Errorf("seed badges: %w", err)
	}
	stored, err := h.repo.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load badge catalog: %w", err)
	}
	return &SeedBadgesResult{Created: created, Catalog: badge.NewCatalog(stored)}, nil
}
