package terraform

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Imports   int               `json:"imports"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Formatted string            `json:"formatted,omitempty"`
}

type ValidationError struct {
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// Validator parses generated plans and checks their import blocks.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate parses hclCode and checks that every import block carries the
// to, id and provider attributes.
func (v *Validator) Validate(hclCode string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	// A fresh parser per call; hclparse.Parser caches files by name.
	file, diags := hclparse.NewParser().ParseHCL([]byte(hclCode), "imports.tf")
	result.addDiagnostics(diags)
	if !result.Valid || file == nil {
		return result
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		result.fail(ValidationError{Message: "unexpected HCL body type"})
		return result
	}

	for _, block := range body.Blocks {
		if block.Type != "import" {
			continue
		}
		result.Imports++
		for _, attr := range []string{"to", "id", "provider"} {
			if _, ok := block.Body.Attributes[attr]; !ok {
				result.fail(ValidationError{
					Line:    block.TypeRange.Start.Line,
					Column:  block.TypeRange.Start.Column,
					Message: fmt.Sprintf("import block is missing %q", attr),
				})
			}
		}
	}

	if result.Valid {
		result.Formatted = v.Format(hclCode)
	}
	return result
}

func (v *Validator) Format(hclCode string) string {
	f, diags := hclwrite.ParseConfig([]byte(hclCode), "imports.tf", hcl.InitialPos)
	if diags.HasErrors() {
		return hclCode
	}
	return string(hclwrite.Format(f.Bytes()))
}

// ValidateAndFormat returns the formatted code or an error listing every
// problem found.
func (v *Validator) ValidateAndFormat(hclCode string) (string, error) {
	result := v.Validate(hclCode)
	if !result.Valid {
		errMsgs := make([]string, 0, len(result.Errors))
		for _, err := range result.Errors {
			if err.Line > 0 {
				errMsgs = append(errMsgs, fmt.Sprintf("line %d: %s", err.Line, err.Message))
			} else {
				errMsgs = append(errMsgs, err.Message)
			}
		}
		return "", fmt.Errorf("HCL validation failed: %s", strings.Join(errMsgs, "; "))
	}
	return result.Formatted, nil
}

func (r *ValidationResult) addDiagnostics(diags hcl.Diagnostics) {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		verr := ValidationError{Message: diag.Summary}
		if diag.Detail != "" {
			verr.Message += ": " + diag.Detail
		}
		if diag.Subject != nil {
			verr.Line = diag.Subject.Start.Line
			verr.Column = diag.Subject.Start.Column
		}
		r.fail(verr)
	}
}

func (r *ValidationResult) fail(err ValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}
