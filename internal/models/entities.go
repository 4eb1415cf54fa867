package models

// EntityKind classifies a code entity node in the graph.
type EntityKind string

const (
	KindModule          EntityKind = "Module"
	KindFunction        EntityKind = "Function"
	KindMethod          EntityKind = "Method"
	KindClass           EntityKind = "Class"
	KindStruct          EntityKind = "Struct"
	KindUnion           EntityKind = "Union"
	KindEnum            EntityKind = "Enum"
	KindPointer         EntityKind = "Pointer"
	KindFunctionPointer EntityKind = "FunctionPointer"
	KindTypedef         EntityKind = "Typedef"
	KindMacro           EntityKind = "Macro"
	KindVariable        EntityKind = "Variable"
	KindTestSuite       EntityKind = "TestSuite"
	KindTestCase        EntityKind = "TestCase"
	KindAssertion       EntityKind = "Assertion"
	KindBDDFeature      EntityKind = "BDDFeature"
	KindBDDScenario     EntityKind = "BDDScenario"
	KindBDDStep         EntityKind = "BDDStep"
	KindVulnerability   EntityKind = "Vulnerability"
	KindConfigFile      EntityKind = "ConfigFile"
	KindConfigSetting   EntityKind = "ConfigSetting"
	KindAuthor          EntityKind = "Author"
	KindCommit          EntityKind = "Commit"
)

// EntityID is the final identity assigned by the resolver. The graph store
// keys nodes by (Kind, QualifiedName), so the pair is the identity; no
// surrogate is needed and resolution stays deterministic.
type EntityID struct {
	Kind          EntityKind
	QualifiedName string
}

// CandidateEntity is an unresolved extraction result produced by a parse
// worker for a single file. Qualified names are provisional until the
// resolver merges all candidates for a generation.
type CandidateEntity struct {
	Kind          EntityKind
	Name          string // simple name, last segment of the qualified name
	QualifiedName string // lexical scope path, e.g. proj.pkg.Class.method
	DefiningFile  string // repo-relative path of the file that owns this entity
	Module        string // qualified name of the enclosing module
	StartLine     int
	EndLine       int
	Attrs         map[string]any // kind-specific: signature, severity, lock_count, ...
}

// Entity is a resolved, generation-stamped graph node.
type Entity struct {
	ID           EntityID
	Name         string
	DefiningFile string
	Module       string
	StartLine    int
	EndLine      int
	Generation   uint64
	Attrs        map[string]any
}
