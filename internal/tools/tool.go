// File path: internal/tools/tool.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/session"
)

var (
	ErrUnknownTool  = errors.New("tools: unknown tool")
	ErrToolDisabled = errors.New("tools: tool not enabled for industry")
	ErrInvalidInput = errors.New("tools: invalid input")
)

// Artifacts is the slice of the artifact service tools rely on.
type Artifacts interface {
	Save(ctx context.Context, in artifact.SaveInput) (artifact.Artifact, error)
	HasApproved(ctx context.Context, projectID, artifactType, phaseID string) (bool, error)
}

// Context is everything a tool may read or change during one run.
type Context struct {
	context.Context

	Owner     string
	Project   project.Project
	Session   *session.State
	Input     map[string]interface{}
	Artifacts Artifacts
	Gates     *gate.Resolver
	Now       time.Time
}

// Decode copies the JSON input into out.
func (c *Context) Decode(out interface{}) error {
	input := c.Input
	if input == nil {
		input = map[string]interface{}{}
	}
	if err := docstore.Decode(input, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Snapshot is the result of a tool run; it is persisted per tool.
type Snapshot struct {
	Tool       string                 `json:"tool"`
	ProjectID  string                 `json:"project_id"`
	Namespace  string                 `json:"namespace"`
	Data       map[string]interface{} `json:"data"`
	Warnings   []string               `json:"warnings"`
	ArtifactID string                 `json:"artifact_id,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func (s *Snapshot) warn(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Tool is a single form-like operation over the session state.
type Tool interface {
	ID() string
	Execute(c *Context) (Snapshot, error)
}

// Registry is an immutable set of tools keyed by id.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		id := strings.TrimSpace(tool.ID())
		if id == "" {
			return nil, errors.New("tools: empty tool id")
		}
		if _, dup := r.tools[id]; dup {
			return nil, fmt.Errorf("tools: duplicate tool id %q", id)
		}
		r.tools[id] = tool
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of built-in tools.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(
			StakeholderRegister{},
			ActionTracker{},
			MOCRequestTool{},
			ArtifactForm{},
			CostModel{},
		)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

func (r *Registry) Get(id string) (Tool, bool) {
	tool, ok := r.tools[strings.TrimSpace(id)]
	return tool, ok
}

// IDs returns the sorted tool ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.tools))
	for id := range r.tools {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// parseNumber accepts finite JSON numbers and numeric strings such as
// "1,200.5". NaN and infinities are rejected since documents cannot hold them.
func parseNumber(value interface{}) (float64, error) {
	var out float64
	switch v := value.(type) {
	case float64:
		out = v
	case float32:
		out = float64(v)
	case int:
		out = float64(v)
	case int64:
		out = float64(v)
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if cleaned == "" {
			return 0, errors.New("empty value")
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number %q", v)
		}
		out = parsed
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
	if !isFinite(out) {
		return 0, fmt.Errorf("non-finite value %v", value)
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func newSnapshot(id string, c *Context) Snapshot {
	return Snapshot{
		Tool:      id,
		ProjectID: c.Project.ID,
		Namespace: c.Project.Namespace(),
		Data:      map[string]interface{}{},
		Warnings:  []string{},
		CreatedAt: c.Now,
	}
}
