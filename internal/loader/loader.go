// Package loader reads offer, recipe, policy and decision documents from
// JSON, YAML, CSV and XLSX files already in canonical columns.
package loader

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/heraklist/evochia-ops/internal/model"
)

// Format is a supported document format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat returns the format implied by the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("loader: unsupported file extension %q", filepath.Ext(path))
	}
}

// decodeFile decodes a JSON or YAML document into v.
func decodeFile(path string, v any) error {
	data, err := readDocument(path)
	if err != nil {
		return err
	}
	return Decode(data, v)
}

// Decode decodes a JSON document into v.
func Decode(data []byte, v any) error {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrap(err, "loader: decode json")
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// isArray reports whether a JSON document's top level is an array.
func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	return len(trimmed) > 0 && trimmed[0] == '['
}

// readDocument returns the JSON bytes of a JSON or YAML file. YAML is
// normalized to JSON so every model type decodes through its JSON tags.
func readDocument(path string) ([]byte, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		out, err := yamlToJSON(data)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: parse yaml %s", path)
		}
		return out, nil
	default:
		return nil, eris.Errorf("loader: %s documents must be json or yaml", path)
	}
}

// LoadRecipe reads a single recipe document.
func LoadRecipe(path string) (model.Recipe, error) {
	var r model.Recipe
	if err := decodeFile(path, &r); err != nil {
		return model.Recipe{}, err
	}
	return r, nil
}

// LoadRecipes reads a recipe list. A bare array, a {"recipes": [...]}
// wrapper, or a single recipe object are accepted.
func LoadRecipes(path string) ([]model.Recipe, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return DecodeRecipes(data)
}

// DecodeRecipes decodes a recipe list in any of the shapes LoadRecipes accepts.
func DecodeRecipes(data []byte) ([]model.Recipe, error) {
	if isArray(data) {
		var list []model.Recipe
		if err := Decode(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapper struct {
		Recipes []model.Recipe `json:"recipes"`
	}
	if err := Decode(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Recipes != nil {
		return wrapper.Recipes, nil
	}
	var single model.Recipe
	if err := Decode(data, &single); err != nil {
		return nil, err
	}
	return []model.Recipe{single}, nil
}

// LoadPolicies reads a policy list. A {"policies": [...]} or legacy
// {"overrides": [...]} document, or a bare array, are accepted.
func LoadPolicies(path string) ([]model.PolicyRule, error) {
	data, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return DecodePolicies(data)
}

// DecodePolicies decodes a policy list in any of the shapes LoadPolicies accepts.
func DecodePolicies(data []byte) ([]model.PolicyRule, error) {
	if isArray(data) {
		var list []model.PolicyRule
		if err := Decode(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var doc model.PolicyDocument
	if err := Decode(data, &doc); err != nil {
		return nil, err
	}
	return doc.Rules(), nil
}

// MergePolicies applies the precedence between a legacy overrides file and a
// policies file: a non-nil policies list replaces the overrides.
func MergePolicies(overrides, policies []model.PolicyRule) []model.PolicyRule {
	if policies != nil {
		return policies
	}
	return overrides
}

// LoadDecisions reads a decision list.
func LoadDecisions(path string) ([]model.Decision, error) {
	var list []model.Decision
	if err := decodeFile(path, &list); err != nil {
		return nil, err
	}
	return list, nil
}
