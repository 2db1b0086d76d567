// Package specialty maps free-text medical specialty names onto a fixed set of
// canonical labels using a synonym table.
package specialty

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Fallback is returned for input that matches no synonym.
const Fallback = "Others"

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	canonical []string
	index     map[string]string
}

// New builds a Normalizer from a canonical -> synonyms table. Canonical labels
// are indexed as their own synonyms. A synonym listed under more than one
// label resolves to the label that sorts first.
func New(table map[string][]string) *Normalizer {
	n := &Normalizer{
		canonical: make([]string, 0, len(table)),
		index:     make(map[string]string),
	}
	for label := range table {
		n.canonical = append(n.canonical, label)
	}
	sort.Strings(n.canonical)

	n.index[Canonicalize(Fallback)] = Fallback
	for _, label := range n.canonical {
		n.index[Canonicalize(label)] = label
	}
	for _, label := range n.canonical {
		for _, syn := range table[label] {
			key := Canonicalize(syn)
			if key == "" {
				continue
			}
			if _, taken := n.index[key]; !taken {
				n.index[key] = label
			}
		}
	}
	return n
}

// Load reads a synonym table from a .json, .yaml or .yml file. It always
// returns a usable Normalizer: when the file is missing or unparseable the
// Normalizer is empty (every input maps to Fallback) and the error says why.
func Load(path string) (*Normalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return New(nil), fmt.Errorf("read synonyms: %w", err)
	}

	table := map[string][]string{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &table)
	default:
		err = json.Unmarshal(data, &table)
	}
	if err != nil {
		return New(nil), fmt.Errorf("parse synonyms %s: %w", path, err)
	}
	return New(table), nil
}

// Canonicalize collapses whitespace, trims and title-cases s. It is the single
// step applied to both synonyms and lookups.
func Canonicalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// Casers carry state, so one per call.
	return cases.Title(language.Und).String(s)
}

// Normalize returns the canonical label for raw, or Fallback.
func (n *Normalizer) Normalize(raw string) string {
	if label, ok := n.index[Canonicalize(raw)]; ok {
		return label
	}
	return Fallback
}

// Known reports whether raw resolves without falling back.
func (n *Normalizer) Known(raw string) bool {
	_, ok := n.index[Canonicalize(raw)]
	return ok
}

// Canonical returns the canonical labels in sorted order. The slice is a copy.
func (n *Normalizer) Canonical() []string {
	out := make([]string, len(n.canonical))
	copy(out, n.canonical)
	return out
}

// Len is the number of indexed synonyms, canonical labels included.
func (n *Normalizer) Len() int {
	if len(n.canonical) == 0 {
		return 0
	}
	return len(n.index)
}
