// Package catalog lists the models and voices the playground offers and
// estimates what a synthesis will cost.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const charsPerMillion = 1_000_000

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ErrEmptyCatalog indicates a catalogue without models or voices.
var ErrEmptyCatalog = errors.New("catalog must list at least one model and one voice")

// Model is a synthesis model with its prices per million characters.
type Model struct {
	Label                 string  `json:"label"                 yaml:"label"`
	Value                 string  `json:"value"                 yaml:"value"`
	OutputPricePerMillion float64 `json:"outputPricePerMillion" yaml:"output_price_per_million"`
	InputPricePerMillion  float64 `json:"inputPricePerMillion"  yaml:"input_price_per_million"`
}

// Voice is a selectable voice.
type Voice struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Catalog is the set of models and voices.
type Catalog struct {
	DefaultModel string  `json:"defaultModel" yaml:"default_model"`
	DefaultVoice string  `json:"defaultVoice" yaml:"default_voice"`
	Models       []Model `json:"models"       yaml:"models"`
	Voices       []Voice `json:"voices"       yaml:"voices"`
}

// Parse decodes a catalogue from YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog

	err := yaml.Unmarshal(data, &cat)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if len(cat.Models) == 0 || len(cat.Voices) == 0 {
		return nil, ErrEmptyCatalog
	}

	return &cat, nil
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	cat, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}

	return cat
}

// Model returns the model with the given value.
func (c *Catalog) Model(value string) (Model, bool) {
	for _, model := range c.Models {
		if model.Value == value {
			return model, true
		}
	}

	return Model{}, false
}

// HasModel reports whether value names a listed model.
func (c *Catalog) HasModel(value string) bool {
	_, found := c.Model(value)

	return found
}

// HasVoice reports whether value names a listed voice.
func (c *Catalog) HasVoice(value string) bool {
	for _, voice := range c.Voices {
		if voice.Value == value {
			return true
		}
	}

	return false
}

// EstimatePrice returns the USD cost of synthesizing text with model.
// Unknown models cost nothing.
func (c *Catalog) EstimatePrice(model, text string) float64 {
	entry, found := c.Model(model)
	if !found {
		return 0
	}

	chars := float64(utf8.RuneCountInString(text)) / charsPerMillion

	return chars*entry.OutputPricePerMillion + chars*entry.InputPricePerMillion
}
