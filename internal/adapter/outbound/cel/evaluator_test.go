package cel

import (
	"context"
	"strings"
	"testing"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	if eval == nil {
		t.Fatal("NewEvaluator() returned nil")
	}
}

func TestValidateExpression_Valid(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	tests := []string{
		`action == "http_get"`,
		`domain == "api.github.com"`,
		`secretId == "gh" && action == "http_get"`,
		`true`,
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			if err := eval.ValidateExpression(expr); err != nil {
				t.Errorf("ValidateExpression(%q) unexpected error: %v", expr, err)
			}
		})
	}
}

func TestValidateExpression_Invalid(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"empty", "", "empty"},
		{"syntax error", "this is not valid !!!", "invalid CEL"},
		{"undefined var", "tool_name == true", "invalid CEL"},
		{"non boolean", `"just a string"`, "invalid CEL"},
		{"too long", strings.Repeat("a", maxExpressionLength+1), "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if err == nil {
				t.Fatalf("ValidateExpression(%q) expected error, got nil", tt.expr)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestEvaluate_TrueAndFalse(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	got, err := eval.Evaluate(context.Background(), `action == "http_get"`, "gh", "http_get", "api.github.com")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !got {
		t.Error("expected true")
	}

	got, err = eval.Evaluate(context.Background(), `action == "http_post"`, "gh", "http_get", "api.github.com")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if got {
		t.Error("expected false")
	}
}

func TestEvaluate_UsesAllFixedVariables(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	got, err := eval.Evaluate(context.Background(),
		`secretId == "gh" && domain == "api.github.com" && now > timestamp("2000-01-01T00:00:00Z")`,
		"gh", "http_get", "api.github.com")
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !got {
		t.Error("expected true")
	}
}

func TestEvaluate_CachesCompiledProgram(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	expr := `action == "http_get"`

	if _, err := eval.Evaluate(context.Background(), expr, "gh", "http_get", "api.github.com"); err != nil {
		t.Fatalf("first Evaluate() error: %v", err)
	}
	if len(eval.compiled) != 1 {
		t.Fatalf("compiled cache size = %d, want 1", len(eval.compiled))
	}
	if _, err := eval.Evaluate(context.Background(), expr, "aws", "http_get", "example.com"); err != nil {
		t.Fatalf("second Evaluate() error: %v", err)
	}
	if len(eval.compiled) != 1 {
		t.Errorf("compiled cache size = %d, want 1 (same expression reused)", len(eval.compiled))
	}
}

func TestEvaluate_InvalidExpressionErrors(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	if _, err := eval.Evaluate(context.Background(), `action ==`, "gh", "http_get", "api.github.com"); err == nil {
		t.Fatal("expected compilation error")
	}
}

func TestValidateNesting(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"no_nesting", "true", false},
		{"single_level", "(true)", false},
		{"50_levels", strings.Repeat("(", 50) + "true" + strings.Repeat(")", 50), false},
		{"51_levels", strings.Repeat("(", 51) + "true" + strings.Repeat(")", 51), true},
		{"100_levels", strings.Repeat("(", 100) + "true" + strings.Repeat(")", 100), true},
		{"interleaved_types", "([{true}])", false},
		{"empty_string", "", false},
		{"only_openers", strings.Repeat("(", 60), true},
		{"deep_square_brackets", strings.Repeat("[", 51) + strings.Repeat("]", 51), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateNesting(tt.expr)
			if tt.wantErr && err == nil {
				t.Errorf("validateNesting(%q) expected error, got nil", tt.expr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateNesting(%q) unexpected error: %v", tt.expr, err)
			}
		})
	}
}

func TestValidateExpression_NestingDepth(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	buildNested := func(depth int) string {
		var b strings.Builder
		for i := 0; i < depth; i++ {
			b.WriteByte('(')
		}
		b.WriteString("true")
		for i := 0; i < depth; i++ {
			b.WriteByte(')')
		}
		return b.String()
	}

	t.Run("deeply_nested_60_levels_rejected", func(t *testing.T) {
		err := eval.ValidateExpression(buildNested(60))
		if err == nil || !strings.Contains(err.Error(), "nesting too deep") {
			t.Fatalf("err = %v, want nesting too deep", err)
		}
	})

	t.Run("at_limit_50_levels_accepted", func(t *testing.T) {
		if err := eval.ValidateExpression(buildNested(50)); err != nil {
			t.Errorf("expression at nesting limit should be valid, got: %v", err)
		}
	})
}
