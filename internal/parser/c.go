package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
)

// cExtractor handles C translation units, including the kernel idioms the
// structural queries cannot express on their own: SYSCALL_DEFINE macros,
// lock call counting, EXPORT_SYMBOL visibility, and pointer analysis.
type cExtractor struct {
	structural languages.StructuralQueries
	semantic   languages.SemanticQueries
}

func (x *cExtractor) Extract(relPath, module string, root *sitter.Node, src []byte) ([]models.CandidateEntity, []models.CandidateRelationship, error) {
	fc := newFileContext(relPath, module, "c", src)
	isTest := isTestFile(relPath, x.semantic.TestFile)

	st := &cFileState{
		exports:  map[string]string{},
		fpNames:  map[string]string{},
		ptrNames: map[string]string{},
		isTest:   isTest,
	}

	eachChild(root, func(node *sitter.Node) {
		x.extractTopLevel(fc, st, node, isTest)
	})

	// EXPORT_SYMBOL is positionally independent of the definition, so
	// export types apply after the whole unit is walked.
	for i := range fc.entities {
		e := &fc.entities[i]
		if e.Kind != models.KindFunction {
			continue
		}
		if export, ok := st.exports[e.Name]; ok {
			e.Attrs["export_type"] = export
		}
	}

	if isTest {
		applyTestSemantics(fc, x.semantic, "c")
	}
	return fc.entities, fc.rels, nil
}

// cFileState carries file-scoped symbol knowledge the body walks need:
// which names are pointers, which are function pointers, and which symbols
// are exported.
// fpNames and ptrNames map a declared name to its entity's qualified name,
// so later assignments attach to the right entity whether the declaration
// was global or local.
type cFileState struct {
	exports  map[string]string
	fpNames  map[string]string
	ptrNames map[string]string
	isTest   bool
}

func (x *cExtractor) extractTopLevel(fc *fileContext, st *cFileState, node *sitter.Node, isTest bool) {
	switch node.Kind() {
	case "function_definition":
		x.extractFunction(fc, st, node, isTest)

	case "struct_specifier", "union_specifier", "enum_specifier":
		x.extractTaggedType(fc, node)

	case "type_definition":
		x.extractTypedef(fc, node)

	case "preproc_def", "preproc_function_def":
		x.extractMacro(fc, node)

	case "declaration":
		// A top-level declaration can carry a tagged type definition in
		// its type specifier as well as the declared variables.
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			switch typeNode.Kind() {
			case "struct_specifier", "union_specifier", "enum_specifier":
				x.extractTaggedType(fc, typeNode)
			}
		}
		x.extractDeclaration(fc, st, node, "", true)

	case "expression_statement":
		// EXPORT_SYMBOL(sym) parses as a bare call at file scope.
		eachChild(node, func(child *sitter.Node) {
			if child.Kind() != "call_expression" {
				return
			}
			callee := nodeText(child.ChildByFieldName("function"), fc.src)
			if callee == "EXPORT_SYMBOL" || callee == "EXPORT_SYMBOL_GPL" {
				if arg := firstArgument(child, fc.src); arg != "" {
					st.exports[arg] = callee
				}
			}
		})

	case "preproc_ifdef", "preproc_if", "linkage_specification":
		// Conditional blocks still contain definitions.
		eachChild(node, func(child *sitter.Node) {
			x.extractTopLevel(fc, st, child, isTest)
		})
	}
}

func (x *cExtractor) extractFunction(fc *fileContext, st *cFileState, node *sitter.Node, isTest bool) {
	declarator := node.ChildByFieldName("declarator")
	name := declaredIdentifier(declarator, fc.src)
	if name == "" {
		return
	}

	attrs := map[string]any{
		"signature": strings.TrimSpace(nodeText(node.ChildByFieldName("type"), fc.src) + " " + nodeText(declarator, fc.src)),
	}

	// SYSCALL_DEFINEn(open, ...) parses as a definition named after the
	// macro; the real syscall name is the first parameter.
	if strings.HasPrefix(name, "SYSCALL_DEFINE") {
		nr := strings.TrimPrefix(name, "SYSCALL_DEFINE")
		if real := firstParameterText(declarator, fc.src); real != "" {
			name = "sys_" + real
			attrs["syscall"] = true
			attrs["syscall_params"] = nr
		}
	}

	qn := JoinQN(fc.module, name)
	body := node.ChildByFieldName("body")

	lockCount := 0
	if body != nil {
		x.walkBody(fc, st, body, qn, &lockCount)
	}
	if lockCount > 0 {
		attrs["lock_count"] = lockCount
	}
	attrs["size"] = endLine(node) - startLine(node) + 1

	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindFunction,
		Name:          name,
		QualifiedName: qn,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         attrs,
	}, "")
}

// walkBody scans a function body for calls, local declarations,
// assignments, assertions, and dangerous callees.
func (x *cExtractor) walkBody(fc *fileContext, st *cFileState, node *sitter.Node, ownerQN string, lockCount *int) {
	switch node.Kind() {
	case "call_expression":
		x.extractCall(fc, st, node, ownerQN, lockCount)

	case "declaration":
		x.extractDeclaration(fc, st, node, ownerQN, false)

	case "assignment_expression":
		x.extractAssignment(fc, st, node, ownerQN)
	}
	eachChild(node, func(child *sitter.Node) {
		x.walkBody(fc, st, child, ownerQN, lockCount)
	})
}

func (x *cExtractor) extractCall(fc *fileContext, st *cFileState, node *sitter.Node, ownerQN string, lockCount *int) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var callee string
	switch fn.Kind() {
	case "identifier":
		callee = nodeText(fn, fc.src)
	case "parenthesized_expression":
		// (*fp)(args), an explicit dereference invocation.
		inner := strings.Trim(nodeText(fn, fc.src), "(*) ")
		if _, isFP := st.fpNames[inner]; isFP {
			x.addFPInvocation(fc, ownerQN, inner, startLine(node))
			return
		}
		return
	default:
		return
	}

	if x.semantic.LockCalls[callee] {
		*lockCount++
		return
	}
	if _, isFP := st.fpNames[callee]; isFP {
		x.addFPInvocation(fc, ownerQN, callee, startLine(node))
		return
	}
	if d, ok := x.semantic.DangerousCalls[callee]; ok {
		fc.addVulnerability(ownerQN, callee, startLine(node), d.Severity, d.CWE, d.Reason)
	}
	if st.isTest {
		for _, a := range x.semantic.AssertCalls {
			if callee == a {
				fc.addAssertion(ownerQN, nodeText(node, fc.src), startLine(node))
				return
			}
		}
	}
	fc.addCall(ownerQN, callee, startLine(node), models.ScopeLocal)
}

func (x *cExtractor) addFPInvocation(fc *fileContext, ownerQN, fp string, line int) {
	fc.rels = append(fc.rels, models.CandidateRelationship{
		Type:        models.RelInvokesFP,
		SourceQN:    ownerQN,
		SourceFile:  fc.relPath, SourceModule: fc.module,
		TargetName:  fp,
		TargetKinds: []models.EntityKind{models.KindFunctionPointer},
		Scope:       models.ScopeLocal,
		Confidence:  1.0,
		Attrs:       map[string]any{"line": line},
	})
}

// extractDeclaration handles variables, pointers, and function pointers at
// either file scope (global=true) or inside a function body.
func (x *cExtractor) extractDeclaration(fc *fileContext, st *cFileState, node *sitter.Node, ownerQN string, global bool) {
	typeText := strings.TrimSpace(nodeText(node.ChildByFieldName("type"), fc.src))

	eachChild(node, func(child *sitter.Node) {
		var declNode, valueNode *sitter.Node
		switch child.Kind() {
		case "init_declarator":
			declNode = child.ChildByFieldName("declarator")
			valueNode = child.ChildByFieldName("value")
		case "pointer_declarator", "function_declarator", "identifier", "array_declarator":
			declNode = child
		default:
			return
		}
		if declNode == nil {
			return
		}
		x.extractDeclarator(fc, st, declNode, valueNode, typeText, ownerQN, global)
	})
}

func (x *cExtractor) extractDeclarator(fc *fileContext, st *cFileState, declNode, valueNode *sitter.Node, typeText, ownerQN string, global bool) {
	scope := ownerQN
	if scope == "" {
		scope = fc.module
	}

	if fpName, ok := functionPointerName(declNode, fc.src); ok {
		qn := JoinQN(scope, fpName)
		st.fpNames[fpName] = qn
		attrs := map[string]any{
			"return_type": typeText,
			"is_global":   global,
		}
		fc.addEntity(models.CandidateEntity{
			Kind:          models.KindFunctionPointer,
			Name:          fpName,
			QualifiedName: qn,
			StartLine:     startLine(declNode),
			EndLine:       endLine(declNode),
			Attrs:         attrs,
		}, ownerQN)
		if valueNode != nil {
			if target := strippedIdentifier(valueNode, fc.src); target != "" && target != "NULL" {
				x.addFPAssignment(fc, qn, target, startLine(declNode))
			}
		}
		return
	}

	if declNode.Kind() == "pointer_declarator" {
		name := declaredIdentifier(declNode, fc.src)
		if name == "" {
			return
		}
		attrs := map[string]any{
			"base_type":   typeText,
			"indirection": pointerDepth(declNode),
			"is_const":    strings.Contains(typeText, "const"),
			"is_global":   global,
		}
		if valueNode != nil && nodeText(valueNode, fc.src) == "NULL" {
			attrs["initialized_to_null"] = true
		}
		qn := JoinQN(scope, name)
		st.ptrNames[name] = qn
		fc.addEntity(models.CandidateEntity{
			Kind:          models.KindPointer,
			Name:          name,
			QualifiedName: qn,
			StartLine:     startLine(declNode),
			EndLine:       endLine(declNode),
			Attrs:         attrs,
		}, ownerQN)
		if valueNode != nil && valueNode.Kind() == "pointer_expression" {
			if target := strippedIdentifier(valueNode, fc.src); target != "" {
				x.addPointsTo(fc, qn, target, startLine(declNode))
			}
		}
		return
	}

	// Plain variable. Locals are too noisy to materialize; only globals
	// become Variable entities, matching how the graph is queried.
	if global && declNode.Kind() == "identifier" {
		name := nodeText(declNode, fc.src)
		fc.addEntity(models.CandidateEntity{
			Kind:          models.KindVariable,
			Name:          name,
			QualifiedName: JoinQN(scope, name),
			StartLine:     startLine(declNode),
			EndLine:       endLine(declNode),
			Attrs: map[string]any{
				"type_hint": typeText,
				"is_global": true,
			},
		}, ownerQN)
	}
}

func (x *cExtractor) extractAssignment(fc *fileContext, st *cFileState, node *sitter.Node, ownerQN string) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Kind() != "identifier" {
		return
	}
	leftName := nodeText(left, fc.src)
	line := startLine(node)

	if fpQN, isFP := st.fpNames[leftName]; isFP {
		if target := strippedIdentifier(right, fc.src); target != "" && target != "NULL" {
			x.addFPAssignment(fc, fpQN, target, line)
		}
		return
	}
	if ptrQN, isPtr := st.ptrNames[leftName]; isPtr && right.Kind() == "pointer_expression" {
		if target := strippedIdentifier(right, fc.src); target != "" {
			x.addPointsTo(fc, ptrQN, target, line)
		}
		return
	}
	if right.Kind() == "identifier" {
		fc.addFlow(nodeText(right, fc.src), leftName, line)
	} else if right.Kind() == "call_expression" {
		if fn := right.ChildByFieldName("function"); fn != nil && fn.Kind() == "identifier" {
			fc.addFlow(nodeText(fn, fc.src), leftName, line)
		}
	}
}

func (x *cExtractor) addFPAssignment(fc *fileContext, fpQN, target string, line int) {
	fc.rels = append(fc.rels, models.CandidateRelationship{
		Type:        models.RelAssignsFP,
		SourceQN:    fpQN,
		SourceKinds: []models.EntityKind{models.KindFunctionPointer},
		SourceFile:  fc.relPath, SourceModule: fc.module,
		TargetName:  target,
		TargetKinds: []models.EntityKind{models.KindFunction, models.KindMethod},
		Scope:       models.ScopeLocal,
		Confidence:  1.0,
		Attrs:       map[string]any{"line": line},
	})
}

func (x *cExtractor) addPointsTo(fc *fileContext, ptrQN, target string, line int) {
	fc.rels = append(fc.rels, models.CandidateRelationship{
		Type:       models.RelPointsTo,
		SourceQN:   ptrQN,
		SourceKinds: []models.EntityKind{models.KindPointer},
		SourceFile: fc.relPath, SourceModule: fc.module,
		TargetName: target,
		Scope:      models.ScopeLocal,
		Confidence: 1.0,
		Attrs:      map[string]any{"line": line},
	})
}

func (x *cExtractor) extractTaggedType(fc *fileContext, node *sitter.Node) {
	nameNode := node.ChildByFieldName(x.structural.NameField)
	if nameNode == nil || node.ChildByFieldName("body") == nil {
		return // forward declaration or anonymous
	}
	kind, ok := x.structural.EntityNodes[node.Kind()]
	if !ok {
		return
	}
	name := nodeText(nameNode, fc.src)
	fc.addEntity(models.CandidateEntity{
		Kind:          kind,
		Name:          name,
		QualifiedName: JoinQN(fc.module, name),
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         map[string]any{"size": endLine(node) - startLine(node) + 1},
	}, "")
}

func (x *cExtractor) extractTypedef(fc *fileContext, node *sitter.Node) {
	// The underlying type may itself define a tagged type.
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		switch typeNode.Kind() {
		case "struct_specifier", "union_specifier", "enum_specifier":
			x.extractTaggedType(fc, typeNode)
		}
	}
	declNode := node.ChildByFieldName("declarator")
	name := declaredIdentifier(declNode, fc.src)
	if name == "" {
		return
	}
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindTypedef,
		Name:          name,
		QualifiedName: JoinQN(fc.module, name),
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs: map[string]any{
			"underlying": strings.TrimSpace(nodeText(node.ChildByFieldName("type"), fc.src)),
		},
	}, "")
}

func (x *cExtractor) extractMacro(fc *fileContext, node *sitter.Node) {
	nameNode := node.ChildByFieldName(x.structural.NameField)
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, fc.src)
	attrs := map[string]any{
		"function_like": node.Kind() == "preproc_function_def",
	}
	if value := node.ChildByFieldName("value"); value != nil {
		attrs["value"] = strings.TrimSpace(nodeText(value, fc.src))
	}
	fc.addEntity(models.CandidateEntity{
		Kind:          models.KindMacro,
		Name:          name,
		QualifiedName: JoinQN(fc.module, name),
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Attrs:         attrs,
	}, "")
}

// declaredIdentifier descends through declarator wrappers
// (pointer/function/array/parenthesized) to the declared identifier.
func declaredIdentifier(node *sitter.Node, src []byte) string {
	for node != nil {
		switch node.Kind() {
		case "identifier", "field_identifier", "type_identifier":
			return nodeText(node, src)
		case "pointer_declarator", "function_declarator", "array_declarator", "parenthesized_declarator", "init_declarator":
			if inner := node.ChildByFieldName("declarator"); inner != nil {
				node = inner
				continue
			}
			// parenthesized_declarator has no field; take the first
			// named child.
			var next *sitter.Node
			eachChild(node, func(child *sitter.Node) {
				if next == nil && child.IsNamed() {
					next = child
				}
			})
			node = next
		default:
			return ""
		}
	}
	return ""
}

// functionPointerName detects the `ret (*name)(args)` declarator shape.
func functionPointerName(node *sitter.Node, src []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Kind() == "function_declarator" {
		inner := node.ChildByFieldName("declarator")
		if inner != nil && inner.Kind() == "parenthesized_declarator" {
			name := declaredIdentifier(inner, src)
			return name, name != ""
		}
	}
	if node.Kind() == "pointer_declarator" {
		if inner := node.ChildByFieldName("declarator"); inner != nil {
			return functionPointerName(inner, src)
		}
	}
	return "", false
}

// pointerDepth counts nested pointer declarators: `char **argv` -> 2.
func pointerDepth(node *sitter.Node) int {
	depth := 0
	for node != nil && node.Kind() == "pointer_declarator" {
		depth++
		node = node.ChildByFieldName("declarator")
	}
	return depth
}

// strippedIdentifier unwraps &x / (fn) / casts down to a bare identifier.
func strippedIdentifier(node *sitter.Node, src []byte) string {
	for node != nil {
		switch node.Kind() {
		case "identifier":
			return nodeText(node, src)
		case "pointer_expression":
			node = node.ChildByFieldName("argument")
		case "parenthesized_expression":
			var inner *sitter.Node
			eachChild(node, func(child *sitter.Node) {
				if inner == nil && child.IsNamed() {
					inner = child
				}
			})
			node = inner
		case "cast_expression":
			node = node.ChildByFieldName("value")
		default:
			return ""
		}
	}
	return ""
}

// firstArgument returns the text of a call's first argument.
func firstArgument(call *sitter.Node, src []byte) string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	var first *sitter.Node
	eachChild(args, func(child *sitter.Node) {
		if first == nil && child.IsNamed() {
			first = child
		}
	})
	return nodeText(first, src)
}

// firstParameterText returns the first parameter of a function declarator,
// used to recover the real name from SYSCALL_DEFINEn(name, ...).
func firstParameterText(declarator *sitter.Node, src []byte) string {
	node := declarator
	for node != nil && node.Kind() != "function_declarator" {
		node = node.ChildByFieldName("declarator")
	}
	if node == nil {
		return ""
	}
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return ""
	}
	var first *sitter.Node
	eachChild(params, func(child *sitter.Node) {
		if first == nil && child.IsNamed() {
			first = child
		}
	})
	return strings.TrimSpace(nodeText(first, src))
}
