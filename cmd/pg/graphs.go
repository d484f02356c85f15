package main

import (
	"context"

	"github.com/matsen/papergraph/internal/config"
	"github.com/matsen/papergraph/internal/graphcache"
	"github.com/matsen/papergraph/internal/storage"
)

// SyncCounts reports how many records were loaded into the query database.
type SyncCounts struct {
	Papers int `json:"papers"`
	Notes  int `json:"notes"`
}

// mustSyncDatabase reloads papers and notes from JSONL into SQLite, exits on error.
func mustSyncDatabase(repoRoot string, db *storage.DB) SyncCounts {
	papers, err := db.RebuildFromJSONL(config.PapersPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "rebuilding papers database: %v", err)
	}
	notes, err := db.RebuildNotesFromJSONL(config.NotesPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "rebuilding notes database: %v", err)
	}
	return SyncCounts{Papers: papers, Notes: notes}
}

// mustBuildGraphs syncs the database and builds every graph from it, exits on error.
func mustBuildGraphs(ctx context.Context, repoRoot string, db *storage.DB) (*graphcache.Cache, SyncCounts) {
	counts := mustSyncDatabase(repoRoot, db)
	cache := graphcache.New(db, graphcache.WithLogger(log))
	if err := cache.RebuildAll(ctx); err != nil {
		exitWithError(ExitError, "building graphs: %v", err)
	}
	return cache, counts
}
