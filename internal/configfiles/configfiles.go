// Package configfiles indexes configuration artifacts (YAML, dotenv) as
// first-class graph entities so queries can trace which settings a repo
// defines and where.
package configfiles

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codegraph/codegraph-go/internal/models"
)

// Provider parses one configuration format into flat settings.
type Provider interface {
	// Matches reports whether the provider handles the given base name.
	Matches(base string) bool
	// Settings returns dotted-key -> value pairs for the file content.
	Settings(content []byte) (map[string]string, error)
	// Format names the provider in entity attributes.
	Format() string
}

// Scanner walks the tree for configuration files and emits ConfigFile and
// ConfigSetting entities with DEFINES_SETTING edges. It implements
// ingestion.Enricher.
type Scanner struct {
	Providers []Provider
}

// NewScanner returns a scanner with the built-in YAML and dotenv providers.
func NewScanner() *Scanner {
	return &Scanner{Providers: []Provider{YAMLProvider{}, DotenvProvider{}}}
}

func (s *Scanner) Name() string { return "config-files" }

func (s *Scanner) Enrich(_ context.Context, root string) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	var entities []models.CandidateEntity
	var rels []models.CandidateRelationship

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() {
			if skip := d.Name(); skip == ".git" || skip == "node_modules" || skip == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		provider := s.providerFor(d.Name())
		if provider == nil {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)

		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil // unreadable config files are skipped, not fatal
		}
		settings, perr := provider.Settings(content)
		if perr != nil {
			return nil // malformed config files are skipped
		}

		fileQN := "config." + strings.ReplaceAll(rel, "/", ".")
		entities = append(entities, models.CandidateEntity{
			Kind:          models.KindConfigFile,
			Name:          d.Name(),
			QualifiedName: fileQN,
			DefiningFile:  rel,
			Module:        fileQN,
			StartLine:     1,
			Attrs: map[string]any{
				"format":        provider.Format(),
				"setting_count": len(settings),
			},
		})

		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			settingQN := fileQN + "#" + key
			entities = append(entities, models.CandidateEntity{
				Kind:          models.KindConfigSetting,
				Name:          key,
				QualifiedName: settingQN,
				DefiningFile:  rel,
				Module:        fileQN,
				Attrs: map[string]any{
					"value": settings[key],
				},
			})
			rels = append(rels, models.CandidateRelationship{
				Type:        models.RelDefinesSetting,
				SourceQN:    fileQN,
				SourceKinds: []models.EntityKind{models.KindConfigFile},
				SourceFile:  rel, SourceModule: fileQN,
				TargetName:  settingQN,
				TargetKinds: []models.EntityKind{models.KindConfigSetting},
				Scope:       models.ScopeLocal,
				Confidence:  1.0,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan config files: %w", err)
	}
	return entities, rels, nil
}

func (s *Scanner) providerFor(base string) Provider {
	for _, p := range s.Providers {
		if p.Matches(base) {
			return p
		}
	}
	return nil
}

// YAMLProvider flattens YAML documents into dotted keys.
type YAMLProvider struct{}

func (YAMLProvider) Format() string { return "yaml" }

func (YAMLProvider) Matches(base string) bool {
	return strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml")
}

func (YAMLProvider) Settings(content []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	out := map[string]string{}
	flattenYAML("", doc, out)
	return out, nil
}

func flattenYAML(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenYAML(full, v, out)
		case []any:
			out[full] = fmt.Sprintf("%v", v)
		default:
			out[full] = fmt.Sprintf("%v", v)
		}
	}
}

// DotenvProvider parses .env files.
type DotenvProvider struct{}

func (DotenvProvider) Format() string { return "dotenv" }

func (DotenvProvider) Matches(base string) bool {
	return base == ".env" || strings.HasPrefix(base, ".env.")
}

func (DotenvProvider) Settings(content []byte) (map[string]string, error) {
	return godotenv.UnmarshalBytes(content)
}
