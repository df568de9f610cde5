package config

import (
	"errors"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scoring"
)

// RulesFile is the YAML rules document:
//
//	queries:
//	  - query: '"ISL" sponsorship'
//	    category: sports
//	buckets:
//	  tender: {keywords: [tender, rfp], weight: 30}
//	gates:
//	  noise: [preview, highlights]
//	stopWords: [league]
type RulesFile struct {
	Queries   []discovery.Query         `yaml:"queries"`
	Buckets   map[string]scoring.Bucket `yaml:"buckets"`
	Gates     scoring.Gates             `yaml:"gates"`
	StopWords []string                  `yaml:"stopWords"`
}

// LoadRulesFile reads and decodes path. Unknown keys are rejected.
func LoadRulesFile(path string) (*RulesFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Config, "open rules file", err)
	}
	defer f.Close()

	var rf RulesFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperr.Wrap(apperr.Config, "parse rules file", err)
	}
	return &rf, nil
}

// Apply merges the file over cfg. Queries and non-empty gate lists
// replace the defaults, buckets are replaced or added by name, and stop
// words are added to the built-in list.
func (rf *RulesFile) Apply(cfg *Config) {
	if len(rf.Queries) > 0 {
		cfg.Queries = rf.Queries
	}

	rules := cfg.Rules
	buckets := make(map[string]scoring.Bucket, len(rules.Buckets)+len(rf.Buckets))
	for name, b := range rules.Buckets {
		buckets[name] = b
	}
	for name, b := range rf.Buckets {
		buckets[name] = b
	}
	rules.Buckets = buckets

	g := rf.Gates
	if len(g.Structure) > 0 {
		rules.Gates.Structure = g.Structure
	}
	if len(g.Lifecycle) > 0 {
		rules.Gates.Lifecycle = g.Lifecycle
	}
	if len(g.Noise) > 0 {
		rules.Gates.Noise = g.Noise
	}
	if len(g.Commercial) > 0 {
		rules.Gates.Commercial = g.Commercial
	}
	if len(g.RequiredCategory) > 0 {
		rules.Gates.RequiredCategory = g.RequiredCategory
	}
	cfg.Rules = rules

	cfg.StopWords = append(cfg.StopWords, rf.StopWords...)
}
