package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codegraph/codegraph-go/internal/models"
)

// Neo4jBackend implements Backend over the Bolt protocol. It is stateless
// per request; the context passed to each call bounds the round trip.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// NewNeo4jBackend connects and verifies connectivity before returning.
func NewNeo4jBackend(ctx context.Context, uri, username, password, database string, log *slog.Logger) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Neo4jBackend{driver: driver, database: database, log: log}, nil
}

// entityLabels is every label the schema uses; constraints are created for
// each so MERGE on qualified_name stays an index lookup.
var entityLabels = []models.EntityKind{
	models.KindModule, models.KindFunction, models.KindMethod,
	models.KindClass, models.KindStruct, models.KindUnion, models.KindEnum,
	models.KindPointer, models.KindFunctionPointer, models.KindTypedef,
	models.KindMacro, models.KindVariable,
	models.KindTestSuite, models.KindTestCase, models.KindAssertion,
	models.KindBDDFeature, models.KindBDDScenario, models.KindBDDStep,
	models.KindVulnerability, models.KindConfigFile, models.KindConfigSetting,
	models.KindAuthor, models.KindCommit,
}

func (n *Neo4jBackend) EnsureConstraints(ctx context.Context) error {
	for _, label := range entityLabels {
		query := fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.qualified_name IS UNIQUE",
			sanitizeLabel(string(label)))
		if _, err := neo4j.ExecuteQuery(ctx, n.driver, query, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database)); err != nil {
			return fmt.Errorf("constraint for %s: %w", label, err)
		}
	}
	return nil
}

// UpsertEntities merges one batch of nodes, grouped by label so each group
// runs as a single UNWIND. MERGE on qualified_name makes the write
// idempotent; SET n += node refreshes every property including generation.
func (n *Neo4jBackend) UpsertEntities(ctx context.Context, entities []*models.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	byLabel := make(map[models.EntityKind][]map[string]any)
	for _, e := range entities {
		byLabel[e.ID.Kind] = append(byLabel[e.ID.Kind], entityProps(e))
	}

	for label, nodes := range byLabel {
		query := fmt.Sprintf(`
			UNWIND $nodes AS node
			MERGE (n:%s {qualified_name: node.qualified_name})
			SET n += node
			RETURN count(n) AS merged
		`, sanitizeLabel(string(label)))

		_, err := neo4j.ExecuteQuery(ctx, n.driver, query,
			map[string]any{"nodes": nodes},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database))
		if err != nil {
			return fmt.Errorf("upsert %d %s nodes: %w", len(nodes), label, err)
		}
	}
	return nil
}

// UpsertRelationships merges one batch of edges, grouped by type. Labels
// cannot be parameterized in Cypher, so endpoint labels filter via the
// labels() predicate the same way the node property key does.
func (n *Neo4jBackend) UpsertRelationships(ctx context.Context, rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	byType := make(map[models.RelType][]map[string]any)
	for _, r := range rels {
		props := map[string]any{"confidence": r.Confidence}
		for k, v := range r.Attrs {
			props[k] = v
		}
		byType[r.Type] = append(byType[r.Type], map[string]any{
			"from_label": string(r.From.Kind),
			"from_qn":    r.From.QualifiedName,
			"to_label":   string(r.To.Kind),
			"to_qn":      r.To.QualifiedName,
			"props":      props,
		})
	}

	for relType, edges := range byType {
		query := fmt.Sprintf(`
			UNWIND $edges AS edge
			MATCH (from)
			WHERE edge.from_label IN labels(from) AND from.qualified_name = edge.from_qn
			MATCH (to)
			WHERE edge.to_label IN labels(to) AND to.qualified_name = edge.to_qn
			MERGE (from)-[r:%s]->(to)
			SET r += edge.props
			RETURN count(r) AS merged
		`, sanitizeLabel(string(relType)))

		result, err := neo4j.ExecuteQuery(ctx, n.driver, query,
			map[string]any{"edges": edges},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database))
		if err != nil {
			return fmt.Errorf("upsert %d %s edges: %w", len(edges), relType, err)
		}

		if len(result.Records) > 0 {
			if merged, ok := result.Records[0].Get("merged"); ok {
				if count, isInt := merged.(int64); isInt && count < int64(len(edges)) {
					n.log.Warn("some edges did not match both endpoints",
						"type", relType, "requested", len(edges), "merged", count)
				}
			}
		}
	}
	return nil
}

func (n *Neo4jBackend) DeleteEntitiesForFiles(ctx context.Context, files []string) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	result, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n) WHERE n.defining_file IN $files DETACH DELETE n",
		map[string]any{"files": files},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return 0, fmt.Errorf("delete entities for %d files: %w", len(files), err)
	}
	return int64(result.Summary.Counters().NodesDeleted()), nil
}

func (n *Neo4jBackend) PruneStaleEntities(ctx context.Context, files []string, generation uint64) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	result, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n) WHERE n.defining_file IN $files AND n.generation < $generation DETACH DELETE n",
		map[string]any{"files": files, "generation": int64(generation)},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return 0, fmt.Errorf("prune stale entities: %w", err)
	}
	return int64(result.Summary.Counters().NodesDeleted()), nil
}

func (n *Neo4jBackend) PruneEdgesForFiles(ctx context.Context, files []string) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	result, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n)-[r]->() WHERE n.defining_file IN $files DELETE r",
		map[string]any{"files": files},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return 0, fmt.Errorf("prune edges: %w", err)
	}
	return int64(result.Summary.Counters().RelationshipsDeleted()), nil
}

func (n *Neo4jBackend) RenameFile(ctx context.Context, oldPath, newPath string) error {
	_, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n {defining_file: $old}) SET n.defining_file = $new",
		map[string]any{"old": oldPath, "new": newPath},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

func (n *Neo4jBackend) Wipe(ctx context.Context) error {
	_, err := neo4j.ExecuteQuery(ctx, n.driver,
		"MATCH (n) DETACH DELETE n", nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return fmt.Errorf("wipe graph: %w", err)
	}
	return nil
}

func (n *Neo4jBackend) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// entityProps flattens an entity into node properties. Attrs merge first
// so kind-specific fields ride along; the identity fields win on key
// collision.
func entityProps(e *models.Entity) map[string]any {
	props := make(map[string]any, len(e.Attrs)+7)
	for k, v := range e.Attrs {
		props[k] = v
	}
	props["qualified_name"] = e.ID.QualifiedName
	props["name"] = e.Name
	props["defining_file"] = e.DefiningFile
	props["module"] = e.Module
	props["start_line"] = e.StartLine
	props["end_line"] = e.EndLine
	props["generation"] = int64(e.Generation)
	return props
}

// sanitizeLabel strips anything that is not alphanumeric or underscore.
// Labels are interpolated into Cypher and must never carry user input.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
