package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
)

type goExtractor struct {
	structural languages.StructuralQueries
	semantic   languages.SemanticQueries
}

func (x *goExtractor) Extract(relPath, module string, root *sitter.Node, src []byte) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	fc := newFileContext(relPath, module, "go", src)
	isTest := isTestFile(relPath, x.semantic.TestFile)

	eachChild(root, func(node *sitter.Node) {
		switch node.Kind() {
		case "function_declaration":
			x.extractFunction(fc, node, isTest)
		case "method_declaration":
			x.extractMethod(fc, node, isTest)
		case "type_declaration":
			x.extractTypeDecl(fc, node)
		case "var_declaration", "const_declaration":
			x.extractValueDecl(fc, node)
		}
	})

	if isTest {
		applyTestSemantics(fc, x.semantic, "go")
	}
	return fc.entities, fc.rels, nil
}

func (x *goExtractor) extractFunction(fc *fileContext, node *sitter.Node, isTest bool) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	qn := JoinQN(fc.module, name)
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindFunction,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs: map[string]any{
			"signature": goSignature(node, fc.src),
			"exported":  name[0] >= 'A' && name[0] <= 'Z',
		},
	}, "")
	if body := node.ChildByFieldName("body"); body != nil {
		x.walkBody(fc, body, qn, isTest)
	}
}

func (x *goExtractor) extractMethod(fc *fileContext, node *sitter.Node, isTest bool) {
	name := nodeText(node.ChildByFieldName(x.structural.NameField), fc.src)
	if name == "" {
		return
	}
	recv := receiverType(node.ChildByFieldName("receiver"), fc.src)

	parentQN := ""
	qn := JoinQN(fc.module, name)
	if recv != "" {
		parentQN = JoinQN(fc.module, recv)
		qn = JoinQN(parentQN, name)
	}
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindMethod,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs: map[string]any{
			"receiver":  recv,
			"signature": goSignature(node, fc.src),
		},
	}, parentQN)
	if body := node.ChildByFieldName("body"); body != nil {
		x.walkBody(fc, body, qn, isTest)
	}
}

func (x *goExtractor) extractTypeDecl(fc *fileContext, node *sitter.Node) {
	eachChild(node, func(spec *sitter.Node) {
		if spec.Kind() != "type_spec" {
			return
		}
		name := nodeText(spec.ChildByFieldName(x.structural.NameField), fc.src)
		typeNode := spec.ChildByFieldName("type")
		if name == "" || typeNode == nil {
			return
		}
		kind := models.KindTypedef
		attrs := map[string]any{}
		switch typeNode.Kind() {
		case "struct_type":
			kind = models.KindStruct
		case "interface_type":
			kind = models.KindClass
			attrs["declaration"] = "interface"
		default:
			attrs["underlying"] = nodeText(typeNode, fc.src)
		}
		fc.addEntity(models.CandidateEntity{
			Kind:          kind,
			Name:          name,
			QualifiedName: JoinQN(fc.module, name),
			StartLine:     startLine(spec),
			EndLine:       endLine(spec),
			Attrs:         attrs,
		}, "")
	})
}

func (x *goExtractor) extractValueDecl(fc *fileContext, node *sitter.Node) {
	eachChild(node, func(spec *sitter.Node) {
		if spec.Kind() != "var_spec" && spec.Kind() != "const_spec" {
			return
		}
		eachChild(spec, func(child *sitter.Node) {
			if child.Kind() != "identifier" {
				return
			}
			name := nodeText(child, fc.src)
			if name == "" || name == "_" {
				return
			}
			fc.addEntity(models.CandidateEntity{
				Kind:          models.KindVariable,
				Name:          name,
				QualifiedName: JoinQN(fc.module, name),
				StartLine:     startLine(spec),
				EndLine:       endLine(spec),
				Attrs: map[string]any{
					"is_global": true,
					"constant":  spec.Kind() == "const_spec",
				},
			}, "")
		})
	})
}

func (x *goExtractor) walkBody(fc *fileContext, node *sitter.Node, ownerQN string, isTest bool) {
	switch node.Kind() {
	case "call_expression":
		x.extractCall(fc, node, ownerQN, isTest)

	case "assignment_statement", "short_var_declaration":
		left := node.ChildByFieldName("left")
		right := node.ChildByFieldName("right")
		if left != nil && right != nil {
			l := firstIdentifier(left, fc.src)
			r := firstIdentifier(right, fc.src)
			if l != "" && r != "" {
				fc.addFlow(r, l, startLine(node))
			}
		}
	}
	eachChild(node, func(child *sitter.Node) {
		x.walkBody(fc, child, ownerQN, isTest)
	})
}

func (x *goExtractor) extractCall(fc *fileContext, node *sitter.Node, ownerQN string, isTest bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := startLine(node)

	switch fn.Kind() {
	case "identifier":
		callee := nodeText(fn, fc.src)
		if isGoBuiltin(callee) {
			return
		}
		fc.addCall(ownerQN, callee, line, models.ScopeLocal)

	case "selector_expression":
		full := nodeText(fn, fc.src)
		if d, ok := x.semantic.DangerousCalls[full]; ok {
			fc.addVulnerability(ownerQN, full, line, d.Severity, d.CWE, d.Reason)
		}
		if isTest {
			for _, a := range x.semantic.AssertCalls {
				if full == a {
					fc.addAssertion(ownerQN, strings.TrimSpace(nodeText(node, fc.src)), line)
					return
				}
			}
		}
		field := nodeText(fn.ChildByFieldName("field"), fc.src)
		if field != "" {
			fc.addCall(ownerQN, field, line, models.ScopeGlobal)
		}
	}
}

func goSignature(node *sitter.Node, src []byte) string {
	sig := "func"
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		sig += " " + nodeText(recv, src)
	}
	sig += " " + nodeText(node.ChildByFieldName("name"), src) + nodeText(node.ChildByFieldName("parameters"), src)
	if result := node.ChildByFieldName("result"); result != nil {
		sig += " " + nodeText(result, src)
	}
	return sig
}

// receiverType extracts the bare receiver type name: `(s *Server)` -> Server.
func receiverType(recv *sitter.Node, src []byte) string {
	if recv == nil {
		return ""
	}
	var typ string
	eachChild(recv, func(param *sitter.Node) {
		if param.Kind() != "parameter_declaration" {
			return
		}
		t := param.ChildByFieldName("type")
		if t == nil {
			return
		}
		typ = strings.TrimPrefix(nodeText(t, src), "*")
		// Drop type parameters on generic receivers.
		if idx := strings.IndexByte(typ, '['); idx > 0 {
			typ = typ[:idx]
		}
	})
	return typ
}

// firstIdentifier returns the text of node if it is a bare identifier, or
// of its sole identifier child in an expression_list.
func firstIdentifier(node *sitter.Node, src []byte) string {
	if node.Kind() == "identifier" {
		return nodeText(node, src)
	}
	if node.Kind() == "expression_list" && node.ChildCount() == 1 {
		child := node.Child(0)
		if child != nil && child.Kind() == "identifier" {
			return nodeText(child, src)
		}
	}
	return ""
}

var goBuiltins = map[string]bool{
	"append": true, "cap": true, "close": true, "copy": true,
	"delete": true, "len": true, "make": true, "new": true,
	"panic": true, "print": true, "println": true, "recover": true,
	"min": true, "max": true, "clear": true,
}

func isGoBuiltin(name string) bool {
	return goBuiltins[name]
}
