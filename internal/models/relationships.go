package models

// RelType classifies a directed edge between two entities.
type RelType string

const (
	RelDefinedIn        RelType = "DEFINED_IN"
	RelContains         RelType = "CONTAINS"
	RelCalls            RelType = "CALLS"
	RelPointsTo         RelType = "POINTS_TO"
	RelAssignsFP        RelType = "ASSIGNS_FP"
	RelInvokesFP        RelType = "INVOKES_FP"
	RelFlowsTo          RelType = "FLOWS_TO"
	RelTests            RelType = "TESTS"
	RelHasVulnerability RelType = "HAS_VULNERABILITY"
	RelInSuite          RelType = "IN_SUITE"
	RelInFeature        RelType = "IN_FEATURE"
	RelImplementsStep   RelType = "IMPLEMENTS_STEP"
	RelDefinesSetting   RelType = "DEFINES_SETTING"
	RelAuthoredBy       RelType = "AUTHORED_BY"
	RelModifiedIn       RelType = "MODIFIED_IN"
)

// ScopeHint tells the relationship builder where to start looking for a
// symbolic endpoint.
type ScopeHint int

const (
	ScopeLocal  ScopeHint = iota // same file first
	ScopeModule                  // same module first
	ScopeGlobal                  // straight to global simple-name match
)

// CandidateRelationship references its endpoints by symbolic name; the
// relationship builder resolves both sides against the generation's symbol
// table or drops the edge with a counted reason.
type CandidateRelationship struct {
	Type RelType

	// Source endpoint. Parse workers almost always know the full qualified
	// name of the source (the enclosing lexical scope), so SourceQN is
	// authoritative when set; SourceName is the fallback symbol.
	SourceQN     string
	SourceName   string
	SourceKinds  []EntityKind // acceptable kinds, empty = any
	SourceFile   string
	SourceModule string

	// Target endpoint, symbolic.
	TargetName  string
	TargetKinds []EntityKind // acceptable kinds, empty = any
	Scope       ScopeHint

	// Confidence in [0,1] for approximate relationships (test linkage,
	// dynamic dispatch). 1.0 for structurally certain edges.
	Confidence float64
	Attrs      map[string]any
}

// Relationship is a resolved, typed, attributed edge between two entity
// identities. Both endpoints are guaranteed to exist in the symbol table.
type Relationship struct {
	Type       RelType
	From       EntityID
	To         EntityID
	Confidence float64
	Attrs      map[string]any
}

// EdgeKey identifies a logical edge for deduplication: same type and same
// ordered endpoint pair collapse to one relationship.
type EdgeKey struct {
	Type RelType
	From EntityID
	To   EntityID
}

// Key returns the dedup key for a resolved relationship.
func (r Relationship) Key() EdgeKey {
	return EdgeKey{Type: r.Type, From: r.From, To: r.To}
}
