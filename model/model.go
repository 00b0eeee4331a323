// Package model loads and serves the toxicity model used for scoring.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"
)

// WeightsFile is the file name the toxicity weights are stored under
// inside the model cache directory.
const WeightsFile = "toxicity-weights.json"

// Weights is the serialized form of the logistic toxicity model.
type Weights struct {
	Weights map[string]float64 `json:"weights"`
	Bias    float64            `json:"bias"`
}

// Model scores text toxicity with a logistic bag-of-words model.
type Model struct {
	weights Weights
}

// Load reads model weights from a JSON file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model weights: %w", err)
	}

	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal model weights: %w", err)
	}
	if len(w.Weights) == 0 {
		return nil, fmt.Errorf("model weights at %s are empty", path)
	}

	return &Model{weights: w}, nil
}

// Toxicity returns a toxicity probability in [0, 1] for the given text.
func (m *Model) Toxicity(_ context.Context, text string) (float64, error) {
	z := m.weights.Bias
	for _, token := range tokenize(text) {
		z += m.weights.Weights[token]
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// tokenize lowercases and splits on anything that is not a letter or
// digit. Duplicate tokens count once; the model is over token presence.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// Mock is a fixed-score stand-in for the model, for local development and
// tests.
type Mock struct {
	Value float64
	Err   error
}

// Toxicity returns the configured value.
func (m *Mock) Toxicity(context.Context, string) (float64, error) {
	return m.Value, m.Err
}
