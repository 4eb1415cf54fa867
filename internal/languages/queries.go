package languages

import "github.com/codegraph/codegraph-go/internal/models"

// Query sets for the built-in languages. These are data, not behavior: the
// extractors in internal/parser evaluate them against the syntax tree.

// CQueries covers C including kernel idioms (syscall macros, lock calls,
// EXPORT_SYMBOL).
func CQueries() (StructuralQueries, SemanticQueries) {
	structural := StructuralQueries{
		EntityNodes: map[string]models.EntityKind{
			"function_definition":  models.KindFunction,
			"struct_specifier":     models.KindStruct,
			"union_specifier":      models.KindUnion,
			"enum_specifier":       models.KindEnum,
			"type_definition":      models.KindTypedef,
			"preproc_def":          models.KindMacro,
			"preproc_function_def": models.KindMacro,
		},
		NameField: "name",
	}
	semantic := SemanticQueries{
		CallNodes:   []string{"call_expression"},
		AssertCalls: []string{"assert", "ASSERT", "EXPECT_EQ", "EXPECT_NE", "EXPECT_TRUE", "ASSERT_EQ", "ASSERT_TRUE", "KUNIT_EXPECT_EQ", "KUNIT_ASSERT_EQ"},
		DangerousCalls: map[string]Danger{
			"strcpy":   {Severity: "high", CWE: "CWE-120", Reason: "unbounded copy"},
			"strcat":   {Severity: "high", CWE: "CWE-120", Reason: "unbounded concat"},
			"gets":     {Severity: "critical", CWE: "CWE-242", Reason: "inherently dangerous"},
			"sprintf":  {Severity: "medium", CWE: "CWE-120", Reason: "unbounded format"},
			"vsprintf": {Severity: "medium", CWE: "CWE-120", Reason: "unbounded format"},
			"system":   {Severity: "high", CWE: "CWE-78", Reason: "command injection"},
			"popen":    {Severity: "high", CWE: "CWE-78", Reason: "command injection"},
			"alloca":   {Severity: "medium", CWE: "CWE-770", Reason: "stack allocation"},
		},
		LockCalls: map[string]bool{
			"spin_lock": true, "spin_unlock": true,
			"spin_lock_irqsave": true, "spin_unlock_irqrestore": true,
			"raw_spin_lock": true, "raw_spin_unlock": true,
			"mutex_lock": true, "mutex_unlock": true,
			"read_lock": true, "read_unlock": true,
			"write_lock": true, "write_unlock": true,
			"down": true, "up": true,
			"rcu_read_lock": true, "rcu_read_unlock": true,
		},
		TestFile: TestFilePattern{
			Prefixes: []string{"test_"},
			Suffixes: []string{"_test.c"},
			TestDirs: []string{"test", "tests"},
		},
		TestFuncPrefixes: []string{"test_", "Test"},
	}
	return structural, semantic
}

// PythonQueries covers CPython-style modules plus pytest/unittest and
// behave step decorators.
func PythonQueries() (StructuralQueries, SemanticQueries) {
	structural := StructuralQueries{
		EntityNodes: map[string]models.EntityKind{
			"function_definition": models.KindFunction,
			"class_definition":    models.KindClass,
		},
		NameField: "name",
	}
	semantic := SemanticQueries{
		CallNodes:   []string{"call"},
		AssertNodes: []string{"assert_statement"},
		AssertCalls: []string{"assertEqual", "assertTrue", "assertFalse", "assertRaises", "assertIn", "assertIsNone", "assertAlmostEqual"},
		DangerousCalls: map[string]Danger{
			"eval":         {Severity: "high", CWE: "CWE-95", Reason: "code injection"},
			"exec":         {Severity: "high", CWE: "CWE-95", Reason: "code injection"},
			"pickle.loads": {Severity: "high", CWE: "CWE-502", Reason: "unsafe deserialization"},
			"os.system":    {Severity: "high", CWE: "CWE-78", Reason: "command injection"},
			"subprocess.call": {Severity: "medium", CWE: "CWE-78",
				Reason: "command execution"},
		},
		TestFile: TestFilePattern{
			Prefixes: []string{"test_"},
			Suffixes: []string{"_test.py"},
			TestDirs: []string{"tests", "__tests__"},
		},
		TestFuncPrefixes: []string{"test_", "Test"},
		StepDecorators:   []string{"given", "when", "then", "step"},
	}
	return structural, semantic
}

// JavaScriptQueries covers JS and, unchanged, TypeScript.
func JavaScriptQueries() (StructuralQueries, SemanticQueries) {
	structural := StructuralQueries{
		EntityNodes: map[string]models.EntityKind{
			"function_declaration": models.KindFunction,
			"class_declaration":    models.KindClass,
			"method_definition":    models.KindMethod,
		},
		NameField: "name",
	}
	semantic := SemanticQueries{
		CallNodes:   []string{"call_expression"},
		AssertCalls: []string{"expect", "assert", "ok", "strictEqual", "deepStrictEqual"},
		DangerousCalls: map[string]Danger{
			"eval": {Severity: "high", CWE: "CWE-95", Reason: "code injection"},
			"Function": {Severity: "medium", CWE: "CWE-95",
				Reason: "dynamic code"},
		},
		TestFile: TestFilePattern{
			Suffixes: []string{".test.js", ".spec.js", ".test.ts", ".spec.ts", ".test.tsx", ".spec.tsx"},
			TestDirs: []string{"__tests__"},
		},
		TestFuncPrefixes: []string{"test", "it", "describe"},
	}
	return structural, semantic
}

// GoQueries covers Go sources and the standard testing conventions.
func GoQueries() (StructuralQueries, SemanticQueries) {
	structural := StructuralQueries{
		EntityNodes: map[string]models.EntityKind{
			"function_declaration": models.KindFunction,
			"method_declaration":   models.KindMethod,
			"type_declaration":     models.KindStruct,
		},
		NameField: "name",
	}
	semantic := SemanticQueries{
		CallNodes:   []string{"call_expression"},
		AssertCalls: []string{"assert.Equal", "assert.True", "require.NoError", "require.Equal", "t.Errorf", "t.Fatalf", "t.Error", "t.Fatal"},
		DangerousCalls: map[string]Danger{
			"exec.Command": {Severity: "medium", CWE: "CWE-78", Reason: "command execution"},
		},
		TestFile: TestFilePattern{
			Suffixes: []string{"_test.go"},
		},
		TestFuncPrefixes: []string{"Test", "Benchmark", "Example", "Fuzz"},
	}
	return structural, semantic
}
