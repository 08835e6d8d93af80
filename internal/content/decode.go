package content

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
)

// Envelope is the wire shape of a course read.
type Envelope struct {
	Course *Course `json:"course"`
}

var idSchema = map[string]any{
	"type": []any{"string", "integer"},
}

// documentSchema is the structural contract for course documents.
// Semantic checks (unique ids, semver) live in Validate.
var documentSchema = map[string]any{
	"type":     "object",
	"required": []any{"course"},
	"properties": map[string]any{
		"course": map[string]any{
			"type":     "object",
			"required": []any{"id", "title", "lessons"},
			"properties": map[string]any{
				"id":      idSchema,
				"title":   map[string]any{"type": "string"},
				"version": map[string]any{"type": "string"},
				"lessons": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":     "object",
						"required": []any{"id", "blocks"},
						"properties": map[string]any{
							"id":    idSchema,
							"title": map[string]any{"type": "string"},
							"blocks": map[string]any{
								"type":     "array",
								"minItems": 1,
								"items": map[string]any{
									"type":     "object",
									"required": []any{"id", "type"},
									"properties": map[string]any{
										"id": idSchema,
										"type": map[string]any{
											"enum": []any{"text", "video", "audio", "image", "quiz", "sequence", "file-upload"},
										},
										"title":       map[string]any{"type": "string"},
										"order_index": map[string]any{"type": "integer"},
									},
								},
							},
						},
					},
				},
			},
		},
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		defBytes, err := json.Marshal(documentSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal course schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse course schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://course.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add course schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(url)
	})
	return compiled, compileErr
}

// Decode reads a course document ({"course": {...}}), checks it against
// the document schema, and returns the validated, order-normalized course.
func Decode(r io.Reader) (*Course, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read course document: %w", err)
	}
	return DecodeBytes(raw)
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(raw []byte) (*Course, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperr.Validation("course document is not valid JSON", err.Error())
	}
	s, err := schema()
	if err != nil {
		return nil, apperr.Internal("course schema", err)
	}
	if err := s.Validate(parsed); err != nil {
		return nil, apperr.Validation("course document does not match schema", err.Error())
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.Validation("decode course document", err.Error())
	}
	if err := env.Course.Normalize(); err != nil {
		return nil, err
	}
	return env.Course, nil
}

// DecodeYAML accepts the same document written as YAML.
func DecodeYAML(r io.Reader) (*Course, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperr.Validation("course document is not valid YAML", err.Error())
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, apperr.Validation("course document cannot be represented as JSON", err.Error())
	}
	return DecodeBytes(raw)
}

// Encode renders c in the wire envelope.
func Encode(c *Course) ([]byte, error) {
	return json.Marshal(Envelope{Course: c})
}

// Normalize sorts each lesson's blocks by order_index (stable), canonicalizes
// the version, and runs Validate.
func (c *Course) Normalize() error {
	if c == nil {
		return apperr.Validation("course document has no course", "")
	}
	for i := range c.Lessons {
		blocks := c.Lessons[i].Blocks
		sort.SliceStable(blocks, func(a, b int) bool {
			return blocks[a].OrderIndex < blocks[b].OrderIndex
		})
	}
	c.Version = CanonicalVersion(c.Version)
	return c.Validate()
}

// Validate checks the invariants navigation relies on: at least one
// lesson, at least one block per lesson, unique lesson and block ids, and
// decodable quiz and sequence payloads.
func (c *Course) Validate() error {
	if len(c.Lessons) == 0 {
		return apperr.Validation("course has no lessons", string(c.ID))
	}
	if c.Version != "" && !semver.IsValid(c.Version) {
		return apperr.Validation("course version is not semver", c.Version)
	}
	lessonIDs := make(map[ID]bool, len(c.Lessons))
	blockIDs := make(map[ID]bool)
	for i := range c.Lessons {
		l := &c.Lessons[i]
		if len(l.Blocks) == 0 {
			return apperr.Validation("lesson has no blocks", string(l.ID))
		}
		if lessonIDs[l.ID] {
			return apperr.Validation("duplicate lesson id", string(l.ID))
		}
		lessonIDs[l.ID] = true
		for j := range l.Blocks {
			b := &l.Blocks[j]
			if blockIDs[b.ID] {
				return apperr.Validation("duplicate block id", string(b.ID))
			}
			blockIDs[b.ID] = true
			if _, err := b.Quiz(); err != nil {
				return apperr.Validation("invalid quiz content", err.Error())
			}
			if _, err := b.Sequence(); err != nil {
				return apperr.Validation("invalid sequence content", err.Error())
			}
		}
	}
	return nil
}

// CanonicalVersion prefixes a bare "1.2.3" with "v". Empty stays empty.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
