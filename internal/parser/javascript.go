package parser

import (
	"path"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
)

// jsExtractor covers JavaScript and TypeScript with one walk; the TS-only
// node kinds (interfaces, enums, type aliases) simply never match in JS
// trees.
type jsExtractor struct {
	structural languages.StructuralQueries
	semantic   languages.SemanticQueries
	language   string
}

func (x *jsExtractor) Extract(relPath, module string, root *sitter.Node, src []byte) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	fc := newFileContext(relPath, module, x.language, src)
	isTest := isTestFile(relPath, x.semantic.TestFile)

	imports := collectJSImports(root, src, relPath)

	eachChild(root, func(node *sitter.Node) {
		x.extractStatement(fc, node, module, imports, isTest)
	})

	if isTest {
		applyTestSemantics(fc, x.semantic, x.language)
	}
	return fc.entities, fc.rels, nil
}

// collectJSImports maps imported local names to qualified names. Relative
// sources resolve against the importing file so `./codec` in src/net/a.js
// becomes src.net.codec; bare package specifiers stay as-is.
func collectJSImports(root *sitter.Node, src []byte, relPath string) map[string]string {
	imports := map[string]string{}
	dir := path.Dir(strings.ReplaceAll(relPath, "\\", "/"))

	resolve := func(source string) string {
		source = strings.Trim(source, `'"`)
		if strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") {
			return ModuleQN(path.Join(dir, source))
		}
		return strings.ReplaceAll(source, "/", ".")
	}

	eachChild(root, func(node *sitter.Node) {
		if node.Kind() != "import_statement" {
			return
		}
		sourceNode := node.ChildByFieldName("source")
		if sourceNode == nil {
			return
		}
		moduleQN := resolve(nodeText(sourceNode, src))

		eachChild(node, func(clause *sitter.Node) {
			if clause.Kind() != "import_clause" {
				return
			}
			eachChild(clause, func(item *sitter.Node) {
				switch item.Kind() {
				case "identifier": // default import
					imports[nodeText(item, src)] = moduleQN + "." + nodeText(item, src)
				case "namespace_import":
					eachChild(item, func(id *sitter.Node) {
						if id.Kind() == "identifier" {
							imports[nodeText(id, src)] = moduleQN
						}
					})
				case "named_imports":
					eachChild(item, func(spec *sitter.Node) {
						if spec.Kind() != "import_specifier" {
							return
						}
						name := nodeText(spec.ChildByFieldName("name"), src)
						local := name
						if alias := spec.ChildByFieldName("alias"); alias != nil {
							local = nodeText(alias, src)
						}
						if local != "" {
							imports[local] = moduleQN + "." + name
						}
					})
				}
			})
		})
	})
	return imports
}

func (x *jsExtractor) extractStatement(fc *fileContext, node *sitter.Node, scopeQN string, imports map[string]string, isTest bool) {
	switch node.Kind() {
	case "function_declaration", "generator_function_declaration":
		x.extractFunction(fc, node, scopeQN, imports, isTest)

	case "class_declaration":
		x.extractClass(fc, node, scopeQN, imports, isTest)

	case "lexical_declaration", "variable_declaration":
		x.extractVarDeclaration(fc, node, scopeQN, imports, isTest)

	case "interface_declaration":
		x.extractNamedType(fc, node, scopeQN, models.KindClass, map[string]any{"declaration": "interface"})

	case "enum_declaration":
		x.extractNamedType(fc, node, scopeQN, models.KindEnum, nil)

	case "type_alias_declaration":
		x.extractNamedType(fc, node, scopeQN, models.KindTypedef, nil)

	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			x.extractStatement(fc, decl, scopeQN, imports, isTest)
		}

	case "expression_statement":
		// Module-level calls only matter for test registration blocks.
		eachChild(node, func(child *sitter.Node) {
			if child.Kind() == "call_expression" {
				x.extractTopLevelCall(fc, child, imports, isTest)
			}
		})
	}
}

func (x *jsExtractor) extractNamedType(fc *fileContext, node *sitter.Node, scopeQN string, kind models.EntityKind, attrs map[string]any) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	fc.addEntity(models.CandidateEntity{
		Kind:          kind,
		Name:          name,
		QualifiedName: JoinQN(scopeQN, name),
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         attrs,
	}, parentOrEmpty(scopeQN, fc.module))
}

func (x *jsExtractor) extractFunction(fc *fileContext, node *sitter.Node, scopeQN string, imports map[string]string, isTest bool) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	qn := JoinQN(scopeQN, name)
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindFunction,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs: map[string]any{
			"parameters": strings.Trim(nodeText(node.ChildByFieldName("parameters"), fc.src), "()"),
		},
	}, parentOrEmpty(scopeQN, fc.module))

	if body := node.ChildByFieldName("body"); body != nil {
		x.walkBody(fc, body, qn, imports, isTest)
	}
}

func (x *jsExtractor) extractClass(fc *fileContext, node *sitter.Node, scopeQN string, imports map[string]string, isTest bool) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	qn := JoinQN(scopeQN, name)
	attrs := map[string]any{}
	eachChild(node, func(child *sitter.Node) {
		if child.Kind() == "class_heritage" {
			attrs["extends"] = strings.TrimSpace(strings.TrimPrefix(nodeText(child, fc.src), "extends"))
		}
	})
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindClass,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         attrs,
	}, parentOrEmpty(scopeQN, fc.module))

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	eachChild(body, func(member *sitter.Node) {
		if member.Kind() != "method_definition" {
			return
		}
		mname := nodeText(member.ChildByFieldName(x.structural.NameField), fc.src)
		if mname == "" {
			return
		}
		mqn := JoinQN(qn, mname)
		fc.addEntity(models.CandidateEntity{
			Kind:          models.KindMethod,
			Name:          mname,
			QualifiedName: mqn,
			StartLine:     startLine(member),
			EndLine:       endLine(member),
			Attrs: map[string]any{
				"parameters": strings.Trim(nodeText(member.ChildByFieldName("parameters"), fc.src), "()"),
			},
		}, qn)
		if mbody := member.ChildByFieldName("body"); mbody != nil {
			x.walkBody(fc, mbody, mqn, imports, isTest)
		}
	})
}

// extractVarDeclaration promotes `const f = () => {...}` to a Function
// entity and top-level plain declarations to Variables.
func (x *jsExtractor) extractVarDeclaration(fc *fileContext, node *sitter.Node, scopeQN string, imports map[string]string, isTest bool) {
	global := scopeQN == fc.module
	eachChild(node, func(decl *sitter.Node) {
		if decl.Kind() != "variable_declarator" {
			return
		}
		name := nodeText(decl.ChildByFieldName(x.structural.NameField), fc.src)
		value := decl.ChildByFieldName("value")
		if name == "" {
			return
		}
		if value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression" || value.Kind() == "function") {
			qn := JoinQN(scopeQN, name)
			fc.addEntity(models.CandidateEntity{
				Kind:          models.KindFunction,
				Name:          name,
				QualifiedName: qn,
				StartLine:     startLine(decl),
				EndLine:       endLine(decl),
				Attrs: map[string]any{
					"arrow": value.Kind() == "arrow_function",
				},
			}, parentOrEmpty(scopeQN, fc.module))
			if body := value.ChildByFieldName("body"); body != nil {
				x.walkBody(fc, body, qn, imports, isTest)
			}
			return
		}
		if global {
			fc.addEntity(models.CandidateEntity{
				Kind:          models.KindVariable,
				Name:          name,
				QualifiedName: JoinQN(scopeQN, name),
				StartLine:     startLine(decl),
				EndLine:       endLine(decl),
				Attrs:         map[string]any{"is_global": true},
			}, "")
		}
	})
}

func (x *jsExtractor) walkBody(fc *fileContext, node *sitter.Node, ownerQN string, imports map[string]string, isTest bool) {
	switch node.Kind() {
	case "function_declaration", "class_declaration", "lexical_declaration", "variable_declaration":
		x.extractStatement(fc, node, ownerQN, imports, isTest)
		return

	case "call_expression":
		x.extractCall(fc, node, ownerQN, imports, isTest)

	case "assignment_expression":
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		if left != nil && right != nil && left.Kind() == "identifier" && right.Kind() == "identifier" {
			fc.addFlow(nodeText(right, fc.src), nodeText(left, fc.src), startLine(node))
		}
	}
	eachChild(node, func(child *sitter.Node) {
		x.walkBody(fc, child, ownerQN, imports, isTest)
	})
}

func (x *jsExtractor) extractCall(fc *fileContext, node *sitter.Node, ownerQN string, imports map[string]string, isTest bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := startLine(node)

	switch fn.Kind() {
	case "identifier":
		callee := nodeText(fn, fc.src)
		if d, ok := x.semantic.DangerousCalls[callee]; ok {
			fc.addVulnerability(ownerQN, callee, line, d.Severity, d.CWE, d.Reason)
		}
		if isTest {
			for _, a := range x.semantic.AssertCalls {
				if callee == a {
					fc.addAssertion(ownerQN, strings.TrimSpace(nodeText(node, fc.src)), line)
					return
				}
			}
		}
		if full, ok := imports[callee]; ok {
			fc.addCall(ownerQN, full, line, models.ScopeGlobal)
			return
		}
		fc.addCall(ownerQN, callee, line, models.ScopeLocal)

	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := nodeText(fn.ChildByFieldName("property"), fc.src)
		if prop == "" {
			return
		}
		if isTest {
			for _, a := range x.semantic.AssertCalls {
				if prop == a {
					fc.addAssertion(ownerQN, strings.TrimSpace(nodeText(node, fc.src)), line)
					return
				}
			}
		}
		objText := nodeText(obj, fc.src)
		if target, ok := imports[objText]; ok {
			fc.addCall(ownerQN, target+"."+prop, line, models.ScopeGlobal)
			return
		}
		if objText == "this" {
			fc.addCall(ownerQN, prop, line, models.ScopeModule)
			return
		}
		fc.addCall(ownerQN, prop, line, models.ScopeGlobal)
	}
}

// extractTopLevelCall handles jest-style registration at module scope:
// describe blocks descend, test/it calls become TestCase entities whose
// callbacks are walked as the case body.
func (x *jsExtractor) extractTopLevelCall(fc *fileContext, node *sitter.Node, imports map[string]string, isTest bool) {
	if !isTest {
		return
	}
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" {
		return
	}
	callee := nodeText(fn, fc.src)
	args := node.ChildByFieldName("arguments")
	if args == nil {
		return
	}

	var label string
	var callback *sitter.Node
	eachChild(args, func(arg *sitter.Node) {
		switch arg.Kind() {
		case "string":
			if label == "" {
				label = strings.Trim(nodeText(arg, fc.src), "`'\"")
			}
		case "arrow_function", "function_expression", "function":
			callback = arg
		}
	})
	if callback == nil {
		return
	}
	body := callback.ChildByFieldName("body")
	if body == nil {
		return
	}

	switch callee {
	case "describe":
		eachChild(body, func(stmt *sitter.Node) {
			if stmt.Kind() != "expression_statement" {
				return
			}
			eachChild(stmt, func(child *sitter.Node) {
				if child.Kind() == "call_expression" {
					x.extractTopLevelCall(fc, child, imports, isTest)
				}
			})
		})

	case "test", "it":
		if label == "" {
			label = "case_" + strconv.Itoa(startLine(node))
		}
		qn := JoinQN(fc.module, "test", label)
		fc.addEntity(models.CandidateEntity{
			Kind:          models.KindTestCase,
			Name:          label,
			QualifiedName: qn,
			StartLine:     startLine(node),
			EndLine:       endLine(node),
			Attrs:         map[string]any{"framework": "jest"},
		}, "")
		x.walkBody(fc, body, qn, imports, isTest)
	}
}
