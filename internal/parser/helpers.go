package parser

import (
	"strconv"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph-go/internal/models"
)

// nodeText extracts source text for a node using byte offsets.
func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(src) {
		end = uint(len(src))
	}
	return string(src[start:end])
}

func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// eachChild invokes fn for every named and anonymous child of node.
func eachChild(node *sitter.Node, fn func(*sitter.Node)) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			fn(child)
		}
	}
}

// fileContext accumulates extraction output for one file and provides the
// emit helpers every extractor shares: the module entity, containment
// edges, call candidates, and vulnerability findings.
type fileContext struct {
	relPath  string
	module   string
	language string
	src      []byte

	entities []models.CandidateEntity
	rels     []models.CandidateRelationship
}

func newFileContext(relPath, module, language string, src []byte) *fileContext {
	fc := &fileContext{
		relPath:  relPath,
		module:   module,
		language: language,
		src:      src,
	}
	fc.entities = append(fc.entities, models.CandidateEntity{
		Kind:          models.KindModule,
		Name:          SimpleName(module),
		QualifiedName: module,
		DefiningFile:  relPath,
		Module:        module,
		StartLine:     1,
		Attrs:         map[string]any{"language": language},
	})
	return fc
}

// addEntity records a candidate entity plus its structural edges: the
// module CONTAINS it, and it is DEFINED_IN the module. Nested scopes
// (class methods) get their CONTAINS edge from the enclosing scope instead.
func (fc *fileContext) addEntity(e models.CandidateEntity, parentQN string) {
	if e.Attrs == nil {
		e.Attrs = map[string]any{}
	}
	e.DefiningFile = fc.relPath
	e.Module = fc.module
	fc.entities = append(fc.entities, e)

	container := parentQN
	if container == "" {
		container = fc.module
	}
	fc.rels = append(fc.rels,
		models.CandidateRelationship{
			Type:       models.RelContains,
			SourceQN:   container,
			SourceFile: fc.relPath, SourceModule: fc.module,
			TargetName: e.QualifiedName, TargetKinds: []models.EntityKind{e.Kind},
			Scope: models.ScopeLocal, Confidence: 1.0,
		},
		models.CandidateRelationship{
			Type:       models.RelDefinedIn,
			SourceQN:   e.QualifiedName,
			SourceName: e.Name,
			SourceKinds: []models.EntityKind{e.Kind},
			SourceFile:  fc.relPath, SourceModule: fc.module,
			TargetName: fc.module, TargetKinds: []models.EntityKind{models.KindModule},
			Scope: models.ScopeLocal, Confidence: 1.0,
		},
	)
}

// addCall records a CALLS candidate from an enclosing callable to a
// symbolic callee name.
func (fc *fileContext) addCall(callerQN, callee string, line int, scope models.ScopeHint) {
	fc.rels = append(fc.rels, models.CandidateRelationship{
		Type:        models.RelCalls,
		SourceQN:    callerQN,
		SourceKinds: []models.EntityKind{models.KindFunction, models.KindMethod, models.KindTestCase},
		SourceFile:  fc.relPath, SourceModule: fc.module,
		TargetName:  callee,
		TargetKinds: []models.EntityKind{models.KindFunction, models.KindMethod, models.KindFunctionPointer},
		Scope:       scope,
		Confidence:  1.0,
		Attrs:       map[string]any{"line": line},
	})
}

// addVulnerability records a Vulnerability entity anchored at a call site
// plus the HAS_VULNERABILITY edge from the enclosing function.
func (fc *fileContext) addVulnerability(ownerQN, callee string, line int, severity, cwe, reason string) {
	qn := JoinQN(ownerQN, "vuln", callee, strconv.Itoa(line))
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindVulnerability,
		Name:          callee,
		QualifiedName: qn,
		StartLine:     line,
		EndLine:       line,
		Attrs: map[string]any{
			"severity": severity,
			"cwe_id":   cwe,
			"reason":   reason,
			"call":     callee,
		},
	}, ownerQN)
	fc.rels = append(fc.rels, models.CandidateRelationship{
		Type:        models.RelHasVulnerability,
		SourceQN:    ownerQN,
		SourceFile:  fc.relPath, SourceModule: fc.module,
		TargetName:  qn,
		TargetKinds: []models.EntityKind{models.KindVulnerability},
		Scope:       models.ScopeLocal,
		Confidence:  1.0,
	})
}

// addFlow records a low-confidence FLOWS_TO candidate for a simple
// assignment.
func (fc *fileContext) addFlow(from, to string, line int) {
	fc.rels = append(fc.rels, models.CandidateRelationship{
		Type:       models.RelFlowsTo,
		SourceName: from,
		SourceFile: fc.relPath, SourceModule: fc.module,
		TargetName: to,
		Scope:      models.ScopeLocal,
		Confidence: 0.5,
		Attrs:      map[string]any{"line": line, "flow_type": "assignment"},
	})
}
