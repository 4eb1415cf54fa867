package parser

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph-go/internal/models"
)

// gherkinExtractor parses .feature files line by line; there is no
// tree-sitter grammar involved, so root is always nil. Features contain
// scenarios, scenarios contain steps, and step entities are what behave
// step definitions resolve against via IMPLEMENTS_STEP.
type gherkinExtractor struct{}

func (x *gherkinExtractor) Extract(relPath, module string, _ *sitter.Node, src []byte) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	fc := newFileContext(relPath, module, "gherkin", src)

	var featureQN, scenarioQN string
	lastKeyword := ""
	stepOrder := 0
	lineNo := 0

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Feature:"):
			name := strings.TrimSpace(strings.TrimPrefix(line, "Feature:"))
			featureQN = JoinQN(module, name)
			scenarioQN = ""
			fc.addEntity(models.CandidateEntity{
				Kind:          models.KindBDDFeature,
				Name:          name,
				QualifiedName: featureQN,
				StartLine:     lineNo,
			}, "")

		case strings.HasPrefix(line, "Scenario Outline:"), strings.HasPrefix(line, "Scenario:"):
			name := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "Scenario Outline:"), "Scenario:"))
			if featureQN == "" {
				continue
			}
			scenarioQN = JoinQN(featureQN, name)
			stepOrder = 0
			lastKeyword = ""
			fc.addEntity(models.CandidateEntity{
				Kind:          models.KindBDDScenario,
				Name:          name,
				QualifiedName: scenarioQN,
				StartLine:     lineNo,
				Attrs: map[string]any{
					"outline": strings.HasPrefix(line, "Scenario Outline:"),
				},
			}, featureQN)
			fc.rels = append(fc.rels, models.CandidateRelationship{
				Type:        models.RelInFeature,
				SourceQN:    scenarioQN,
				SourceKinds: []models.EntityKind{models.KindBDDScenario},
				SourceFile:  relPath, SourceModule: module,
				TargetName:  featureQN,
				TargetKinds: []models.EntityKind{models.KindBDDFeature},
				Scope:       models.ScopeLocal,
				Confidence:  1.0,
			})

		default:
			keyword, text, ok := stepLine(line, lastKeyword)
			if !ok || scenarioQN == "" {
				continue
			}
			lastKeyword = keyword
			stepOrder++
			fc.addEntity(models.CandidateEntity{
				Kind:          models.KindBDDStep,
				Name:          text,
				QualifiedName: JoinQN(scenarioQN, "step", strconv.Itoa(stepOrder)),
				StartLine:     lineNo,
				Attrs: map[string]any{
					"keyword": keyword,
					"order":   stepOrder,
				},
			}, scenarioQN)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return fc.entities, fc.rels, nil
}

// stepLine splits a Gherkin step into its normalized keyword and text.
// And/But continue the previous keyword.
func stepLine(line, lastKeyword string) (string, string, bool) {
	for _, kw := range []string{"Given", "When", "Then", "And", "But"} {
		if !strings.HasPrefix(line, kw+" ") {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(line, kw))
		keyword := strings.ToLower(kw)
		if kw == "And" || kw == "But" {
			if lastKeyword == "" {
				return "", "", false
			}
			keyword = lastKeyword
		}
		return keyword, text, true
	}
	return "", "", false
}
