// File path: internal/gate/resolver.go
package gate

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed requirements.yaml
var defaultTable []byte

// Requirement is one artifact type a phase gate needs approved.
type Requirement struct {
	Workstream string `yaml:"workstream" json:"workstream"`
	Type       string `yaml:"type" json:"type"`
}

// Dependency names an upstream artifact type in a given phase.
type Dependency struct {
	Phase Phase  `yaml:"phase" json:"phase"`
	Type  string `yaml:"type" json:"type"`
}

// PhaseConfig is the gate definition of one phase for one industry.
type PhaseConfig struct {
	Name         string        `yaml:"name" json:"name"`
	Requirements []Requirement `yaml:"requirements" json:"requirements"`
	Deliverables []string      `yaml:"deliverables" json:"deliverables"`
	Checklist    []string      `yaml:"checklist" json:"checklist"`
}

// IndustryConfig is the full configuration record of an industry.
type IndustryConfig struct {
	ID       Industry                `yaml:"id" json:"id"`
	Name     string                  `yaml:"name" json:"name"`
	Aliases  []string                `yaml:"aliases" json:"aliases,omitempty"`
	Tools    []string                `yaml:"tools" json:"tools,omitempty"`
	Phases   map[Phase]PhaseConfig   `yaml:"phases" json:"phases"`
	Upstream map[string][]Dependency `yaml:"upstream" json:"upstream,omitempty"`
}

type table struct {
	Industries []IndustryConfig `yaml:"industries"`
}

// LookupStatus tells callers why a lookup returned what it did.
type LookupStatus int

const (
	Found LookupStatus = iota
	UnknownIndustry
	UnknownPhase
)

func (s LookupStatus) String() string {
	switch s {
	case Found:
		return "found"
	case UnknownIndustry:
		return "unknown_industry"
	case UnknownPhase:
		return "unknown_phase"
	default:
		return fmt.Sprintf("LookupStatus(%d)", int(s))
	}
}

// Resolver answers gate questions from one immutable table.
type Resolver struct {
	industries []IndustryConfig
	byKey      map[string]int
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
	defaultErr      error
)

// Default returns the resolver built from the embedded table.
func Default() (*Resolver, error) {
	defaultOnce.Do(func() {
		defaultResolver, defaultErr = Parse(defaultTable)
	})
	return defaultResolver, defaultErr
}

// MustDefault is Default for callers that treat a broken embedded table as a
// programming error.
func MustDefault() *Resolver {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFile parses a replacement table from disk.
func LoadFile(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gate: read %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("gate: %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a YAML gate table and indexes industries by id and alias.
func Parse(data []byte) (*Resolver, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("gate: table is empty")
	}
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("gate: decode table: %w", err)
	}
	r := &Resolver{byKey: map[string]int{}}
	for i, cfg := range t.Industries {
		id := Industry(NormaliseIndustry(string(cfg.ID)))
		if id == "" {
			return nil, fmt.Errorf("gate: industry %d has no id", i)
		}
		cfg.ID = id
		phases := make(map[Phase]PhaseConfig, len(cfg.Phases))
		for raw, phaseCfg := range cfg.Phases {
			phase, err := ParsePhase(string(raw))
			if err != nil {
				return nil, fmt.Errorf("gate: industry %s: %w", id, err)
			}
			phases[phase] = phaseCfg
		}
		cfg.Phases = phases
		idx := len(r.industries)
		r.industries = append(r.industries, cfg)
		for _, key := range append([]string{string(id)}, cfg.Aliases...) {
			folded := NormaliseIndustry(key)
			if folded == "" {
				continue
			}
			if prev, ok := r.byKey[folded]; ok && prev != idx {
				return nil, fmt.Errorf("gate: key %q maps to both %s and %s", folded, r.industries[prev].ID, id)
			}
			r.byKey[folded] = idx
		}
	}
	return r, nil
}

// ParseIndustry resolves an industry name or alias.
func (r *Resolver) ParseIndustry(value string) (Industry, bool) {
	cfg, ok := r.industry(value)
	if !ok {
		return "", false
	}
	return cfg.ID, true
}

func (r *Resolver) industry(value string) (IndustryConfig, bool) {
	if r == nil {
		return IndustryConfig{}, false
	}
	idx, ok := r.byKey[NormaliseIndustry(value)]
	if !ok {
		return IndustryConfig{}, false
	}
	return r.industries[idx], true
}

// Lookup returns the requirements of a phase together with the reason for an
// empty answer.
func (r *Resolver) Lookup(phaseCode, industry string) ([]Requirement, LookupStatus) {
	cfg, ok := r.industry(industry)
	if !ok {
		return []Requirement{}, UnknownIndustry
	}
	phase, err := ParsePhase(phaseCode)
	if err != nil {
		return []Requirement{}, UnknownPhase
	}
	phaseCfg, ok := cfg.Phases[phase]
	if !ok {
		return []Requirement{}, UnknownPhase
	}
	return append([]Requirement{}, phaseCfg.Requirements...), Found
}

// RequiredArtifacts is Lookup without the status: unknown pairs yield an
// empty list.
func (r *Resolver) RequiredArtifacts(phaseCode, industry string) []Requirement {
	reqs, _ := r.Lookup(phaseCode, industry)
	return reqs
}

// Industries lists every configured industry in table order.
func (r *Resolver) Industries() []IndustryConfig {
	if r == nil {
		return nil
	}
	out := make([]IndustryConfig, len(r.industries))
	copy(out, r.industries)
	return out
}

// Industry returns the configuration record of one industry.
func (r *Resolver) Industry(value string) (IndustryConfig, bool) {
	return r.industry(value)
}

// Phase returns the configuration of one phase for an industry.
func (r *Resolver) Phase(phaseCode, industry string) (PhaseConfig, bool) {
	cfg, ok := r.industry(industry)
	if !ok {
		return PhaseConfig{}, false
	}
	phase, err := ParsePhase(phaseCode)
	if err != nil {
		return PhaseConfig{}, false
	}
	phaseCfg, ok := cfg.Phases[phase]
	return phaseCfg, ok
}

// Deliverables returns the items seeded when a project enters the phase.
func (r *Resolver) Deliverables(phaseCode, industry string) []string {
	phaseCfg, _ := r.Phase(phaseCode, industry)
	return append([]string{}, phaseCfg.Deliverables...)
}

// Checklist returns the labels offered on the phase checklist.
func (r *Resolver) Checklist(phaseCode, industry string) []string {
	phaseCfg, _ := r.Phase(phaseCode, industry)
	return append([]string{}, phaseCfg.Checklist...)
}

// PhaseName returns the industry display name of a phase, falling back to
// the phase code.
func (r *Resolver) PhaseName(phaseCode, industry string) string {
	phaseCfg, ok := r.Phase(phaseCode, industry)
	if ok && strings.TrimSpace(phaseCfg.Name) != "" {
		return phaseCfg.Name
	}
	if phase, err := ParsePhase(phaseCode); err == nil {
		return string(phase)
	}
	return strings.TrimSpace(phaseCode)
}

// Upstream lists the artifacts that must be approved before artifactType may
// be saved. Unknown industries and types have no upstream.
func (r *Resolver) Upstream(industry, artifactType string) []Dependency {
	cfg, ok := r.industry(industry)
	if !ok {
		return nil
	}
	return append([]Dependency(nil), cfg.Upstream[artifactType]...)
}

// ToolEnabled reports whether a tool is offered for the industry. Industries
// without a tool list allow every tool.
func (r *Resolver) ToolEnabled(industry, toolID string) bool {
	cfg, ok := r.industry(industry)
	if !ok {
		return false
	}
	if len(cfg.Tools) == 0 {
		return true
	}
	for _, id := range cfg.Tools {
		if id == toolID {
			return true
		}
	}
	return false
}
