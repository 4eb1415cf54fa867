// Package vcs enriches the graph with git provenance: who authored which
// commits, and which modules each commit touched. It shells out to the git
// CLI; repositories without git history enrich to nothing.
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codegraph/codegraph-go/internal/models"
	"github.com/codegraph/codegraph-go/internal/parser"
)

// History implements ingestion.Enricher over `git log`.
type History struct {
	// Since limits history depth, in git's date syntax ("90 days ago",
	// "2026-01-01"). Empty means full history up to MaxCommits.
	Since string
	// MaxCommits caps the number of commits walked. Zero means 1000.
	MaxCommits int
	// PathFilter reports whether a touched path belongs to the indexed
	// set; paths outside it produce no MODIFIED_IN candidates.
	PathFilter func(path string) bool

	Log *logrus.Logger
}

func (h *History) Name() string { return "git-history" }

// Commit is one parsed log entry.
type Commit struct {
	SHA         string
	AuthorName  string
	AuthorEmail string
	Timestamp   int64
	Subject     string
	Files       []string
}

// Enrich walks the log and emits Author and Commit entities plus
// AUTHORED_BY and MODIFIED_IN candidates.
func (h *History) Enrich(ctx context.Context, root string) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	commits, err := h.logCommits(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	log := h.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{"commits": len(commits), "root": root}).
		Debug("git history loaded")

	var entities []models.CandidateEntity
	var rels []models.CandidateRelationship
	seenAuthors := map[string]bool{}

	for _, c := range commits {
		commitQN := "commit." + c.SHA
		authorQN := "author." + c.AuthorEmail

		if !seenAuthors[c.AuthorEmail] {
			seenAuthors[c.AuthorEmail] = true
			entities = append(entities, models.CandidateEntity{
				Kind:          models.KindAuthor,
				Name:          c.AuthorName,
				QualifiedName: authorQN,
				DefiningFile:  ".git",
				Module:        "vcs",
				Attrs:         map[string]any{"email": c.AuthorEmail},
			})
		}
		entities = append(entities, models.CandidateEntity{
			Kind:          models.KindCommit,
			Name:          shortSHA(c.SHA),
			QualifiedName: commitQN,
			DefiningFile:  ".git",
			Module:        "vcs",
			Attrs: map[string]any{
				"sha":       c.SHA,
				"subject":   c.Subject,
				"timestamp": c.Timestamp,
			},
		})
		rels = append(rels, models.CandidateRelationship{
			Type:        models.RelAuthoredBy,
			SourceQN:    commitQN,
			SourceKinds: []models.EntityKind{models.KindCommit},
			SourceFile:  ".git", SourceModule: "vcs",
			TargetName:  authorQN,
			TargetKinds: []models.EntityKind{models.KindAuthor},
			Scope:       models.ScopeGlobal,
			Confidence:  1.0,
		})

		for _, path := range c.Files {
			if h.PathFilter != nil && !h.PathFilter(path) {
				continue
			}
			rels = append(rels, models.CandidateRelationship{
				Type:        models.RelModifiedIn,
				SourceQN:    parser.ModuleQN(path),
				SourceKinds: []models.EntityKind{models.KindModule},
				SourceFile:  path, SourceModule: parser.ModuleQN(path),
				TargetName:  commitQN,
				TargetKinds: []models.EntityKind{models.KindCommit},
				Scope:       models.ScopeGlobal,
				Confidence:  1.0,
			})
		}
	}
	return entities, rels, nil
}

// logCommits runs git log with numstat and parses the block format.
func (h *History) logCommits(ctx context.Context, root string) ([]Commit, error) {
	max := h.MaxCommits
	if max <= 0 {
		max = 1000
	}
	args := []string{
		"-C", root, "log",
		fmt.Sprintf("--max-count=%d", max),
		"--numstat",
		"--pretty=format:>>%H\x1f%an\x1f%ae\x1f%at\x1f%s",
	}
	if h.Since != "" {
		args = append(args, "--since="+h.Since)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git log in %s: %w", root, err)
	}
	return parseLog(&out)
}

func parseLog(out *bytes.Buffer) ([]Commit, error) {
	var commits []Commit
	var current *Commit

	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">>") {
			if current != nil {
				commits = append(commits, *current)
			}
			fields := strings.Split(strings.TrimPrefix(line, ">>"), "\x1f")
			if len(fields) < 5 {
				current = nil
				continue
			}
			ts, _ := strconv.ParseInt(fields[3], 10, 64)
			current = &Commit{
				SHA:         fields[0],
				AuthorName:  fields[1],
				AuthorEmail: fields[2],
				Timestamp:   ts,
				Subject:     fields[4],
			}
			continue
		}
		if current == nil || strings.TrimSpace(line) == "" {
			continue
		}
		// numstat: "<added>\t<deleted>\t<path>"
		parts := strings.Split(line, "\t")
		if len(parts) == 3 {
			current.Files = append(current.Files, strings.TrimSpace(parts[2]))
		}
	}
	if current != nil {
		commits = append(commits, *current)
	}
	return commits, scanner.Err()
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
