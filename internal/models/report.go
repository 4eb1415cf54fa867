package models

import "time"

// FileFailure records one file-scoped, non-fatal error.
type FileFailure struct {
	Path  string
	Stage string // "parse", "write", "delete"
	Err   string
}

// ResolverReport summarizes entity resolution for one generation.
type ResolverReport struct {
	NewEntities     int
	UpdatedEntities int
	KindConflicts   []string // qualified names claimed by more than one kind
}

// IngestionReport is the structured end-of-run report. Per-file and
// per-relationship errors aggregate here instead of aborting the pipeline.
type IngestionReport struct {
	RunID      string
	Generation uint64
	Root       string

	FilesSeen    int
	FilesSkipped int // unsupported extension
	FilesParsed  int
	FilesFailed  int
	FilesReused  int // unchanged, excluded from re-parse

	EntitiesWritten      int
	RelationshipsWritten int
	EntitiesDeleted      int

	UnresolvedReferences  int
	ResolutionAmbiguities int

	Resolver ResolverReport
	Failures []FileFailure

	PartiallyFailed bool
	Cancelled       bool
	Duration        time.Duration
}

// Succeeded reports whether the run completed without any per-file failures.
func (r *IngestionReport) Succeeded() bool {
	return !r.PartiallyFailed && len(r.Failures) == 0 && !r.Cancelled
}
