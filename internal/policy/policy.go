// Package policy turns analysis findings into severity-ranked violations via
// OPA rego rules. The default rules ship embedded; a policy directory can
// replace them wholesale for project-specific triage.
package policy

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/rego"

	"github.com/antmicro/renode-models-analyzer/internal/registers"
)

//go:embed coverage.rego
var defaultRules string

// Engine evaluates rego policies against register analysis results.
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Violation is one policy hit, ready for output.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Register string `json:"register,omitempty"`
}

// Result contains the evaluation results.
type Result struct {
	Violations []Violation
	Summary    Summary
}

// Summary provides aggregate counts.
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// RegisterRow is the per-register slice of the analysis handed to the rules,
// flat so rego predicates stay simple.
type RegisterRow struct {
	Peripheral  string  `json:"peripheral"`
	Name        string  `json:"name"`
	File        string  `json:"file"`
	Line        int     `json:"line"`
	Address     int64   `json:"address"`
	Width       *int    `json:"width"`
	ResetValue  *uint64 `json:"reset_value"`
	// MaxValue is the largest value the register can hold given its width.
	// Rego ships no exponentiation builtin, so the bound is derived here.
	MaxValue    *uint64 `json:"max_value"`
	SpecialKind string  `json:"special_kind"`
}

// WidthMaxValue returns the largest unsigned value representable in width
// bits, nil when the width is unknown or out of range.
func WidthMaxValue(width *int) *uint64 {
	if width == nil || *width <= 0 || *width > 64 {
		return nil
	}
	var v uint64
	if *width == 64 {
		v = ^uint64(0)
	} else {
		v = (uint64(1) << uint(*width)) - 1
	}
	return &v
}

// Input is the data structure passed to OPA.
type Input struct {
	Findings  []registers.Finding `json:"findings"`
	Registers []RegisterRow       `json:"registers"`
}

// NewEmbedded creates a policy engine running the built-in coverage rules.
func NewEmbedded() (*Engine, error) {
	return prepare([]func(*rego.Rego){rego.Module("coverage.rego", defaultRules)})
}

// New creates a policy engine loading every .rego file from policyDir. The
// embedded defaults are not mixed in; a directory owns the whole rule set.
func New(policyDir string) (*Engine, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("finding policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", policyDir)
	}

	var modules []func(*rego.Rego)
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		modules = append(modules, rego.Module(f, string(content)))
	}
	return prepare(modules)
}

func prepare(modules []func(*rego.Rego)) (*Engine, error) {
	engine := &Engine{queries: make(map[string]rego.PreparedEvalQuery)}

	opts := append(append([]func(*rego.Rego){}, modules...),
		rego.Query("data.renode.coverage.all_violations"))
	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing violations query: %w", err)
	}
	engine.queries["violations"] = query

	opts = append(append([]func(*rego.Rego){}, modules...),
		rego.Query("data.renode.coverage.summary"))
	query, err = rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing summary query: %w", err)
	}
	engine.queries["summary"] = query

	return engine, nil
}

// Evaluate runs the policies against the input data.
func (e *Engine) Evaluate(input Input) (*Result, error) {
	ctx := context.Background()

	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if violations, ok := rs[0].Expressions[0].Value.([]interface{}); ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					File:     getString(vmap, "file"),
					Line:     getInt(vmap, "line"),
					Message:  getString(vmap, "message"),
					Register: getString(vmap, "register"),
				})
			}
		}
	}

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if smap, ok := rs[0].Expressions[0].Value.(map[string]interface{}); ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
