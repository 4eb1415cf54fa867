package parser

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
)

// Test semantics are a post-pass over a parsed test file: functions with a
// test prefix become TestCase entities, the file gains a TestSuite, and
// TESTS edges link cases to the production code they exercise. Two signals
// feed TESTS: direct calls out of the test body (confidence 0.8) and the
// naming convention test_foo -> foo (confidence 0.6). Both may fire for the
// same pair; the relationship builder keeps the higher confidence.

var testFrameworks = map[string]string{
	"c":          "kunit",
	"python":     "pytest",
	"javascript": "jest",
	"typescript": "jest",
	"go":         "testing",
}

// isTestFile reports whether relPath matches the language's test file
// conventions by base name prefix, suffix, or a test directory segment.
func isTestFile(relPath string, pattern languages.TestFilePattern) bool {
	base := filepath.Base(relPath)
	for _, p := range pattern.Prefixes {
		if strings.HasPrefix(base, p) {
			return true
		}
	}
	for _, s := range pattern.Suffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	dir := filepath.ToSlash(filepath.Dir(relPath))
	for _, seg := range strings.Split(dir, "/") {
		for _, td := range pattern.TestDirs {
			if seg == td {
				return true
			}
		}
	}
	return false
}

// applyTestSemantics rewrites a test file's extraction in place: suite
// entity, case promotion, and TESTS candidates.
func applyTestSemantics(fc *fileContext, sem languages.SemanticQueries, language string) {
	base := filepath.Base(fc.relPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	suiteQN := JoinQN(fc.module, "suite")
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindTestSuite,
		Name:          base,
		QualifiedName: suiteQN,
		StartLine:     1,
		Attrs: map[string]any{
			"framework": testFrameworks[language],
		},
	}, "")

	for i := range fc.entities {
		e := &fc.entities[i]
		var stripped string
		switch e.Kind {
		case models.KindTestCase:
			// Registered explicitly by the extractor (jest test/it
			// blocks); no name to strip.
		case models.KindFunction, models.KindMethod:
			var ok bool
			stripped, ok = stripTestPrefix(e.Name, sem.TestFuncPrefixes)
			if !ok {
				continue
			}
			e.Kind = models.KindTestCase
			e.Attrs["framework"] = testFrameworks[language]
		default:
			continue
		}

		fc.rels = append(fc.rels, models.CandidateRelationship{
			Type:        models.RelInSuite,
			SourceQN:    e.QualifiedName,
			SourceKinds: []models.EntityKind{models.KindTestCase},
			SourceFile:  fc.relPath, SourceModule: fc.module,
			TargetName:  suiteQN,
			TargetKinds: []models.EntityKind{models.KindTestSuite},
			Scope:       models.ScopeLocal,
			Confidence:  1.0,
		})

		if stripped != "" {
			fc.rels = append(fc.rels, testsCandidate(fc, e.QualifiedName, stripped, 0.6, "naming"))
		}

		// Every call the test body makes is a candidate subject.
		for _, r := range fc.rels {
			if r.Type != models.RelCalls || r.SourceQN != e.QualifiedName {
				continue
			}
			fc.rels = append(fc.rels, testsCandidate(fc, e.QualifiedName, r.TargetName, 0.8, "call"))
		}
	}
}

func testsCandidate(fc *fileContext, caseQN, target string, confidence float64, signal string) models.CandidateRelationship {
	return models.CandidateRelationship{
		Type:        models.RelTests,
		SourceQN:    caseQN,
		SourceKinds: []models.EntityKind{models.KindTestCase},
		SourceFile:  fc.relPath, SourceModule: fc.module,
		TargetName:  target,
		TargetKinds: []models.EntityKind{models.KindFunction, models.KindMethod, models.KindClass, models.KindStruct},
		Scope:       models.ScopeGlobal,
		Confidence:  confidence,
		Attrs:       map[string]any{"signal": signal},
	}
}

// stripTestPrefix returns the subject name implied by a test function name,
// and whether the name is a test at all. "test_parse_header" -> "parse_header",
// "TestParseHeader" -> "ParseHeader".
func stripTestPrefix(name string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if !strings.HasPrefix(name, p) {
			continue
		}
		rest := strings.TrimPrefix(name, p)
		rest = strings.TrimPrefix(rest, "_")
		return rest, true
	}
	return "", false
}

// addAssertion records an Assertion entity anchored at one assert site.
func (fc *fileContext) addAssertion(ownerQN, text string, line int) {
	if len(text) > 120 {
		text = text[:120]
	}
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindAssertion,
		Name:          "assert:" + strconv.Itoa(line),
		QualifiedName: JoinQN(ownerQN, "assert", strconv.Itoa(line)),
		StartLine:     line,
		EndLine:       line,
		Attrs:         map[string]any{"text": text},
	}, ownerQN)
}
