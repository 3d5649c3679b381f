// Package validation checks incoming grade record documents against the record schema.
//
// Structural problems (a required field missing, a field of the wrong type) always
// reject the document. Range problems on learner_id and class_id are soft: depending
// on the configured Action they either reject the document or are logged and accepted.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
)

// Action decides what happens to a document that only fails range checks.
type Action string

const (
	// ActionWarn logs range violations and accepts the document.
	ActionWarn Action = "warn"
	// ActionError rejects documents with range violations.
	ActionError Action = "error"
)

// ParseAction maps configuration values onto an Action. Empty means error.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionWarn:
		return ActionWarn, nil
	case ActionError, "":
		return ActionError, nil
	default:
		return "", fmt.Errorf("unknown validation action %q", raw)
	}
}

// Limits bounds class identifiers.
type Limits struct {
	ClassIDMin int64
	ClassIDMax int64
}

// DefaultLimits matches the reference schema: class_id in [0, 300].
var DefaultLimits = Limits{ClassIDMin: 0, ClassIDMax: 300}

// Result describes a validated document.
type Result struct {
	// Accepted is false when the document must not be stored.
	Accepted bool
	// Violations lists every problem found, structural or range.
	Violations []string
}

// RecordValidator validates grade record documents.
type RecordValidator struct {
	structural *jsonschema.Schema
	ranges     *jsonschema.Schema
	action     Action
	logger     *zap.Logger
}

// NewRecordValidator compiles both schemas.
func NewRecordValidator(limits Limits, action Action, logger *zap.Logger) (*RecordValidator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.ClassIDMax < limits.ClassIDMin {
		return nil, fmt.Errorf("class id range [%d, %d] is empty", limits.ClassIDMin, limits.ClassIDMax)
	}
	structural, err := compile("schema://grade-record-structure.json", structuralSchema())
	if err != nil {
		return nil, err
	}
	ranges, err := compile("schema://grade-record-ranges.json", rangeSchema(limits))
	if err != nil {
		return nil, err
	}
	return &RecordValidator{structural: structural, ranges: ranges, action: action, logger: logger}, nil
}

// Action returns the configured policy.
func (v *RecordValidator) Action() Action {
	return v.action
}

// Validate checks a raw JSON document.
func (v *RecordValidator) Validate(raw []byte) (Result, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return v.ValidateDocument(doc), nil
}

// ValidateDocument checks an already decoded document (as produced by encoding/json
// or jsonschema.UnmarshalJSON).
func (v *RecordValidator) ValidateDocument(doc any) Result {
	if err := v.structural.Validate(doc); err != nil {
		return Result{Accepted: false, Violations: flatten(err)}
	}
	if err := v.ranges.Validate(doc); err != nil {
		violations := flatten(err)
		if v.action == ActionWarn {
			v.logger.Warn("grade record outside accepted range", zap.Strings("violations", violations))
			return Result{Accepted: true, Violations: violations}
		}
		return Result{Accepted: false, Violations: violations}
	}
	return Result{Accepted: true}
}

// ValidateClassID applies the range policy to a class id that records are being moved to.
func (v *RecordValidator) ValidateClassID(classID int64) Result {
	doc := map[string]any{"class_id": json.Number(strconv.FormatInt(classID, 10))}
	if err := v.ranges.Validate(doc); err != nil {
		violations := flatten(err)
		if v.action == ActionWarn {
			v.logger.Warn("class id outside accepted range", zap.Int64("class_id", classID))
			return Result{Accepted: true, Violations: violations}
		}
		return Result{Accepted: false, Violations: violations}
	}
	return Result{Accepted: true}
}

func compile(url string, schema map[string]any) (*jsonschema.Schema, error) {
	// jsonschema expects a decoded JSON value, so round-trip the Go literal.
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

func structuralSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"anyOf": []any{
			map[string]any{"required": []any{"learner_id"}},
			map[string]any{"required": []any{"student_id"}},
		},
		"required": []any{"class_id", "scores"},
		"properties": map[string]any{
			"class_id":   map[string]any{"type": "integer"},
			"learner_id": map[string]any{"type": "integer"},
			"student_id": map[string]any{"type": "integer"},
			"scores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"type", "score"},
					"properties": map[string]any{
						"type":  map[string]any{"type": "string", "minLength": 1},
						"score": map[string]any{"type": "number"},
					},
				},
			},
		},
	}
}

func rangeSchema(limits Limits) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"class_id": map[string]any{
				"minimum":     limits.ClassIDMin,
				"maximum":     limits.ClassIDMax,
				"description": "class_id must be an integer in range",
			},
			"learner_id": map[string]any{"minimum": 0},
			"student_id": map[string]any{"minimum": 0},
		},
	}
}

func flatten(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		out = append(out, strings.TrimSpace(strings.TrimLeft(line, "- ")))
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
