package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
)

type pythonExtractor struct {
	structural languages.StructuralQueries
	semantic   languages.SemanticQueries
}

func (x *pythonExtractor) Extract(relPath, module string, root *sitter.Node, src []byte) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	fc := newFileContext(relPath, module, "python", src)
	isTest := isTestFile(relPath, x.semantic.TestFile)

	imports := collectPythonImports(root, src)

	eachChild(root, func(node *sitter.Node) {
		x.extractStatement(fc, node, module, "", imports, isTest)
	})

	if isTest {
		applyTestSemantics(fc, x.semantic, "python")
	}
	return fc.entities, fc.rels, nil
}

// collectPythonImports builds the alias -> dotted-path map used to rewrite
// call targets to their defining module: `import os.path as p` lets a later
// `p.join(...)` resolve as os.path.join.
func collectPythonImports(root *sitter.Node, src []byte) map[string]string {
	imports := map[string]string{}
	eachChild(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "import_statement":
			eachChild(node, func(child *sitter.Node) {
				switch child.Kind() {
				case "dotted_name":
					full := nodeText(child, src)
					imports[SimpleName(full)] = full
					imports[full] = full
				case "aliased_import":
					full := nodeText(child.ChildByFieldName("name"), src)
					alias := nodeText(child.ChildByFieldName("alias"), src)
					if alias != "" {
						imports[alias] = full
					}
				}
			})
		case "import_from_statement":
			from := nodeText(node.ChildByFieldName("module_name"), src)
			if from == "" {
				return
			}
			eachChild(node, func(child *sitter.Node) {
				switch child.Kind() {
				case "dotted_name":
					if nodeText(child, src) == from {
						return
					}
					name := nodeText(child, src)
					imports[name] = from + "." + name
				case "aliased_import":
					orig := nodeText(child.ChildByFieldName("name"), src)
					alias := nodeText(child.ChildByFieldName("alias"), src)
					if alias != "" {
						imports[alias] = from + "." + orig
					}
				}
			})
		}
	})
	return imports
}

func (x *pythonExtractor) extractStatement(fc *fileContext, node *sitter.Node, scopeQN, classQN string, imports map[string]string, isTest bool) {
	switch node.Kind() {
	case "function_definition":
		x.extractFunction(fc, node, scopeQN, classQN, nil, imports, isTest)

	case "class_definition":
		x.extractClass(fc, node, scopeQN, imports, isTest)

	case "decorated_definition":
		var decorators []*sitter.Node
		var def *sitter.Node
		eachChild(node, func(child *sitter.Node) {
			switch child.Kind() {
			case "decorator":
				decorators = append(decorators, child)
			case "function_definition":
				def = child
			case "class_definition":
				def = child
			}
		})
		if def == nil {
			return
		}
		if def.Kind() == "class_definition" {
			x.extractClass(fc, def, scopeQN, imports, isTest)
		} else {
			x.extractFunction(fc, def, scopeQN, classQN, decorators, imports, isTest)
		}

	case "expression_statement", "if_statement", "try_statement", "with_statement":
		eachChild(node, func(child *sitter.Node) {
			x.extractStatement(fc, child, scopeQN, classQN, imports, isTest)
		})
	}
}

func (x *pythonExtractor) extractClass(fc *fileContext, node *sitter.Node, scopeQN string, imports map[string]string, isTest bool) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	qn := JoinQN(scopeQN, name)
	attrs := map[string]any{}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		attrs["bases"] = strings.Trim(nodeText(supers, fc.src), "()")
	}
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindClass,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         attrs,
	}, parentOrEmpty(scopeQN, fc.module))

	if body := node.ChildByFieldName("body"); body != nil {
		eachChild(body, func(child *sitter.Node) {
			x.extractStatement(fc, child, qn, qn, imports, isTest)
		})
	}
}

func (x *pythonExtractor) extractFunction(fc *fileContext, node *sitter.Node, scopeQN, classQN string, decorators []*sitter.Node, imports map[string]string, isTest bool) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	qn := JoinQN(scopeQN, name)

	kind := models.KindFunction
	if classQN != "" {
		kind = models.KindMethod
	}

	attrs := map[string]any{
		"parameters": strings.Trim(nodeText(node.ChildByFieldName("parameters"), fc.src), "()"),
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		attrs["return_type"] = nodeText(ret, fc.src)
	}

	for _, dec := range decorators {
		x.applyDecorator(fc, dec, qn, attrs)
	}

	fc.addEntity(models.CandidateEntity{
		Kind:          kind,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         attrs,
	}, parentOrEmpty(scopeQN, fc.module))

	if body := node.ChildByFieldName("body"); body != nil {
		x.walkBody(fc, body, qn, classQN, imports, isTest)
	}
}

// applyDecorator handles behave-style step decorators; everything else is
// recorded as a plain attribute.
func (x *pythonExtractor) applyDecorator(fc *fileContext, dec *sitter.Node, fnQN string, attrs map[string]any) {
	text := strings.TrimPrefix(strings.TrimSpace(nodeText(dec, fc.src)), "@")

	for _, step := range x.semantic.StepDecorators {
		if !strings.HasPrefix(text, step+"(") {
			continue
		}
		pattern := strings.Trim(strings.TrimSuffix(strings.TrimPrefix(text, step+"("), ")"), `'" `)
		attrs["step_kind"] = step
		attrs["step_pattern"] = pattern
		fc.rels = append(fc.rels, models.CandidateRelationship{
			Type:        models.RelImplementsStep,
			SourceQN:    fnQN,
			SourceKinds: []models.EntityKind{models.KindFunction},
			SourceFile:  fc.relPath, SourceModule: fc.module,
			TargetName:  pattern,
			TargetKinds: []models.EntityKind{models.KindBDDStep},
			Scope:       models.ScopeGlobal,
			Confidence:  1.0,
		})
		return
	}

	if decorators, ok := attrs["decorators"].([]string); ok {
		attrs["decorators"] = append(decorators, text)
	} else {
		attrs["decorators"] = []string{text}
	}
}

func (x *pythonExtractor) walkBody(fc *fileContext, node *sitter.Node, ownerQN, classQN string, imports map[string]string, isTest bool) {
	switch node.Kind() {
	case "function_definition", "class_definition", "decorated_definition":
		// Nested definitions open their own scope.
		x.extractStatement(fc, node, ownerQN, classQN, imports, isTest)
		return

	case "call":
		x.extractCall(fc, node, ownerQN, imports, isTest)

	case "assert_statement":
		if isTest {
			fc.addAssertion(ownerQN, strings.TrimSpace(nodeText(node, fc.src)), startLine(node))
		}

	case "assignment":
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		if left != nil && right != nil && left.Kind() == "identifier" && right.Kind() == "identifier" {
			fc.addFlow(nodeText(right, fc.src), nodeText(left, fc.src), startLine(node))
		}
	}
	eachChild(node, func(child *sitter.Node) {
		x.walkBody(fc, child, ownerQN, classQN, imports, isTest)
	})
}

func (x *pythonExtractor) extractCall(fc *fileContext, node *sitter.Node, ownerQN string, imports map[string]string, isTest bool) {
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
		// An imported bare name resolves to its source module's symbol.
		if full, ok := imports[callee]; ok {
			fc.addCall(ownerQN, full, line, models.ScopeGlobal)
			return
		}
		fc.addCall(ownerQN, callee, line, models.ScopeLocal)

	case "attribute":
		obj := nodeText(fn.ChildByFieldName("object"), fc.src)
		attr := nodeText(fn.ChildByFieldName("attribute"), fc.src)
		full := nodeText(fn, fc.src)
		if d, ok := x.semantic.DangerousCalls[full]; ok {
			fc.addVulnerability(ownerQN, full, line, d.Severity, d.CWE, d.Reason)
		}
		if isTest {
			for _, a := range x.semantic.AssertCalls {
				if attr == a {
					fc.addAssertion(ownerQN, strings.TrimSpace(nodeText(node, fc.src)), line)
					return
				}
			}
		}
		// `mod.func()` through an import alias rewrites to the defining
		// module's qualified name; anything else keeps the method's
		// simple name and resolves by scope search.
		if target, ok := imports[obj]; ok {
			fc.addCall(ownerQN, target+"."+attr, line, models.ScopeGlobal)
			return
		}
		if obj == "self" || obj == "cls" {
			fc.addCall(ownerQN, attr, line, models.ScopeModule)
			return
		}
		fc.addCall(ownerQN, attr, line, models.ScopeGlobal)
	}
}

// parentOrEmpty keeps module-level definitions parented to the module via
// addEntity's default, while nested scopes pass through.
func parentOrEmpty(scopeQN, module string) string {
	if scopeQN == module {
		return ""
	}
	return scopeQN
}
