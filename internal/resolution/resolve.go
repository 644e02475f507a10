package resolution

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Resolve is the single core entry point (SPEC_FULL.md §6): it runs entity
// resolution, relationship resolution, and connection discovery in order
// over one immutable input snapshot and returns the complete result.
//
// logger may be nil, in which case slog.Default() is used. Logging is a side
// channel only — it never influences the decisions recorded below.
//
// sourceRunIDs is carried through to the result unchanged; it identifies the
// upstream extraction runs the caller assembled entities/relationships from,
// if any. It may be nil — the core has no way to derive this itself, since
// it never reads from a source store.
func Resolve(entities []Entity, relationships []Relationship, cfg Config, logger *slog.Logger, sourceRunIDs []string) (*ResolutionResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.New().String()
	logger.Info("resolution run starting", "run_id", runID, "entities", len(entities), "relationships", len(relationships))

	canonicalEntities, entityDecisions, remap, err := ResolveEntities(entities, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("entity resolution complete", "run_id", runID, "canonical_entities", len(canonicalEntities), "decisions", len(entityDecisions))

	consolidatedRelationships, relationshipDecisions, err := ResolveRelationships(relationships, remap, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("relationship resolution complete", "run_id", runID, "consolidated_relationships", len(consolidatedRelationships), "decisions", len(relationshipDecisions))

	plainEntities := make([]Entity, len(canonicalEntities))
	for i, ce := range canonicalEntities {
		plainEntities[i] = ce.Entity
	}

	discoveries := DiscoverConnections(plainEntities, consolidatedRelationships, cfg)
	if cfg.MaxDiscoveriesPerRun > 0 && len(discoveries) == cfg.MaxDiscoveriesPerRun {
		logger.Warn("discovery output truncated at max_discoveries_per_run", "run_id", runID, "cap", cfg.MaxDiscoveriesPerRun)
	}
	logger.Info("connection discovery complete", "run_id", runID, "discoveries", len(discoveries))

	duplicateEntitiesRemoved := 0
	for _, d := range entityDecisions {
		duplicateEntitiesRemoved += len(d.DuplicateIDs)
	}
	stats := ResolutionStats{
		EntitiesProcessed:         len(entities),
		EntitiesMerged:            duplicateEntitiesRemoved,
		DuplicateEntitiesRemoved:  duplicateEntitiesRemoved,
		RelationshipsProcessed:    len(relationships),
		RelationshipsConsolidated: len(relationshipDecisions),
		NewConnectionsDiscovered:  len(discoveries),
		ResolutionDurationSeconds: time.Since(start).Seconds(),
	}

	result := &ResolutionResult{
		RunID:                     runID,
		Timestamp:                 time.Now(),
		CanonicalEntities:         canonicalEntities,
		ConsolidatedRelationships: consolidatedRelationships,
		Discoveries:               discoveries,
		EntityDecisions:           entityDecisions,
		RelationshipDecisions:     relationshipDecisions,
		Stats:                     stats,
		ConfigUsed:                cfg,
		SourceRunIDs:              sourceRunIDs,
	}

	logger.Info("resolution run complete", "run_id", runID, "duration_seconds", stats.ResolutionDurationSeconds)
	return result, nil
}
