package ai

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	minModelCost = 1
	maxModelCost = 5
)

// ModelDescriptor describes one selectable upstream model.
type ModelDescriptor struct {
	Name      string `json:"name" yaml:"name"`
	ID        string `json:"id" yaml:"id"`
	Strengths []Tag  `json:"strengths" yaml:"strengths"`
	Cost      int    `json:"cost" yaml:"cost"`
}

// Supports reports whether tag is one of the model's strengths.
func (m ModelDescriptor) Supports(tag Tag) bool {
	for _, strength := range m.Strengths {
		if strength == tag {
			return true
		}
	}
	return false
}

func (m ModelDescriptor) clone() ModelDescriptor {
	m.Strengths = append([]Tag(nil), m.Strengths...)
	return m
}

// Catalog is an immutable, ordered, non-empty list of models. Order is
// the tie-break order used by Selector. Build one with NewCatalog,
// DefaultCatalog or LoadCatalogFile.
type Catalog struct {
	models []ModelDescriptor
}

// NewCatalog validates and copies models.
func NewCatalog(models []ModelDescriptor) (Catalog, error) {
	if len(models) == 0 {
		return Catalog{}, errors.New("catalog must contain at least one model")
	}

	seen := make(map[string]struct{}, len(models))
	copied := make([]ModelDescriptor, 0, len(models))
	for i, model := range models {
		model.ID = strings.TrimSpace(model.ID)
		model.Name = strings.TrimSpace(model.Name)
		if model.ID == "" {
			return Catalog{}, fmt.Errorf("catalog model %d: id must not be empty", i)
		}
		if _, exists := seen[model.ID]; exists {
			return Catalog{}, fmt.Errorf("catalog model %d: duplicate id %q", i, model.ID)
		}
		if model.Cost < minModelCost || model.Cost > maxModelCost {
			return Catalog{}, fmt.Errorf("catalog model %q: cost %d must be between %d and %d", model.ID, model.Cost, minModelCost, maxModelCost)
		}
		if model.Name == "" {
			model.Name = model.ID
		}
		seen[model.ID] = struct{}{}
		copied = append(copied, model.clone())
	}
	return Catalog{models: copied}, nil
}

// DefaultCatalog returns the reference catalog served by the AI gateway.
func DefaultCatalog() Catalog {
	catalog, err := NewCatalog([]ModelDescriptor{
		{
			Name:      "Gemini 2.5 Flash",
			ID:        "google/gemini-2.5-flash",
			Strengths: []Tag{TagConversation, TagGeneral, TagFast, TagMultilingual},
			Cost:      1,
		},
		{
			Name:      "Gemini 2.5 Flash Lite",
			ID:        "google/gemini-2.5-flash-lite",
			Strengths: []Tag{TagSimple, TagClassification, TagSummarization},
			Cost:      1,
		},
		{
			Name:      "Gemini 2.5 Pro",
			ID:        "google/gemini-2.5-pro",
			Strengths: []Tag{TagReasoning, TagComplex, TagAnalysis, TagMultimodal, TagVision},
			Cost:      3,
		},
		{
			Name:      "GPT-5 Nano",
			ID:        "openai/gpt-5-nano",
			Strengths: []Tag{TagFast, TagSimple, TagClassification},
			Cost:      2,
		},
		{
			Name:      "GPT-5 Mini",
			ID:        "openai/gpt-5-mini",
			Strengths: []Tag{TagCode, TagTechnical, TagBalanced, TagProgramming},
			Cost:      3,
		},
		{
			Name:      "GPT-5",
			ID:        "openai/gpt-5",
			Strengths: []Tag{TagComplex, TagReasoning, TagAccuracy, TagNuance, TagExpert},
			Cost:      5,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("default catalog is invalid: %v", err))
	}
	return catalog
}

// List returns a copy of the models in catalog order.
func (c Catalog) List() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(c.models))
	for _, model := range c.models {
		out = append(out, model.clone())
	}
	return out
}

func (c Catalog) Len() int {
	return len(c.models)
}

// Lookup finds a model by upstream id.
func (c Catalog) Lookup(id string) (ModelDescriptor, bool) {
	for _, model := range c.models {
		if model.ID == id {
			return model.clone(), true
		}
	}
	return ModelDescriptor{}, false
}

type catalogFile struct {
	Models []ModelDescriptor `yaml:"models"`
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (Catalog, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("resolve catalog path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file %q: %w", absPath, err)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range file.Models {
		for j, strength := range file.Models[i].Strengths {
			file.Models[i].Strengths[j] = Tag(strings.ToLower(strings.TrimSpace(string(strength))))
		}
	}
	return NewCatalog(file.Models)
}
