// File path: internal/project/service.go
package project

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
)

const (
	projectDocName = "project"
	indexDocName   = "projects_index"
)

// CreateInput describes a new project.
type CreateInput struct {
	Name        string   `json:"name"`
	Industry    string   `json:"industry"`
	Mode        string   `json:"mode,omitempty"`
	TeamMembers []string `json:"team_members,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
	Approvers   []string `json:"approvers,omitempty"`
}

// TeamInput replaces the lists that are non-nil.
type TeamInput struct {
	TeamMembers []string `json:"team_members,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
	Approvers   []string `json:"approvers,omitempty"`
}

// Summary is the index entry of a project.
type Summary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Industry  gate.Industry `json:"industry"`
	Mode      string        `json:"mode"`
	FELStage  gate.Phase    `json:"fel_stage"`
	CreatedAt time.Time     `json:"created_at"`
}

type indexDocument struct {
	Projects []Summary `json:"projects"`
}

// Service persists projects of one owner in the document store.
type Service struct {
	store docstore.Store
	owner string
	gates *gate.Resolver
	mode  string
	now   func() time.Time
	mu    sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.now = clock
	}
}

// WithDefaultMode sets the mode of projects created without one.
func WithDefaultMode(mode string) Option {
	return func(s *Service) {
		if mode = strings.TrimSpace(mode); mode != "" {
			s.mode = mode
		}
	}
}

func NewService(store docstore.Store, owner string, gates *gate.Resolver, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("document store required")
	}
	if gates == nil {
		return nil, errors.New("gate resolver required")
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.New("owner required")
	}
	svc := &Service{store: store, owner: owner, gates: gates, mode: DefaultMode, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

func (s *Service) Owner() string { return s.owner }

func (s *Service) projectKey(id string) docstore.Key {
	return docstore.Key{Owner: s.owner, Project: id, Name: projectDocName}
}

func (s *Service) indexKey() docstore.Key {
	return docstore.Key{Owner: s.owner, Name: indexDocName}
}

// Create validates the input, seeds FEL1 deliverables and persists the project.
func (s *Service) Create(ctx context.Context, in CreateInput) (Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	industry, ok := s.gates.ParseIndustry(in.Industry)
	if !ok {
		return Project{}, fmt.Errorf("%w: unknown industry %q", ErrInvalidInput, in.Industry)
	}
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = s.mode
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return Project{}, err
	}
	id := s.uniqueID(index, NewID(name, now))
	p := Project{
		ID:          id,
		Name:        name,
		Industry:    industry,
		Mode:        mode,
		FELStage:    gate.PhaseFEL1,
		TeamMembers: NormaliseEmails(in.TeamMembers),
		Reviewers:   NormaliseEmails(in.Reviewers),
		Approvers:   NormaliseEmails(in.Approvers),
		Checklist:   map[gate.Phase][]string{},
		History:     []Transition{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.seedDeliverables(gate.PhaseFEL1, s.gates.Deliverables(string(gate.PhaseFEL1), string(industry)))
	if err := s.write(ctx, p); err != nil {
		return Project{}, err
	}
	index.Projects = append(index.Projects, summaryOf(p))
	if err := s.writeIndex(ctx, index); err != nil {
		return Project{}, err
	}
	common.Logger().Info("project: created", "owner", s.owner, "project", p.ID, "industry", p.Industry)
	return p, nil
}

func (s *Service) uniqueID(index indexDocument, base string) string {
	taken := map[string]struct{}{}
	for _, entry := range index.Projects {
		taken[entry.ID] = struct{}{}
	}
	id := base
	for n := 2; ; n++ {
		if _, ok := taken[id]; !ok {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// Get loads a project or returns ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx, id)
}

// List returns the index entries sorted by creation time.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]Summary{}, index.Projects...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn to the stored project and persists the result. Nothing is
// written when fn fails.
func (s *Service) Update(ctx context.Context, id string, fn func(*Project) error) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.read(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if err := fn(&p); err != nil {
		return Project{}, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.write(ctx, p); err != nil {
		return Project{}, err
	}
	index, err := s.readIndex(ctx)
	if err != nil {
		return Project{}, err
	}
	for i := range index.Projects {
		if index.Projects[i].ID == p.ID {
			index.Projects[i] = summaryOf(p)
		}
	}
	if err := s.writeIndex(ctx, index); err != nil {
		return Project{}, err
	}
	return p, nil
}

// SetTeam replaces the team lists given in the input.
func (s *Service) SetTeam(ctx context.Context, id string, in TeamInput) (Project, error) {
	return s.Update(ctx, id, func(p *Project) error {
		if in.TeamMembers != nil {
			p.TeamMembers = NormaliseEmails(in.TeamMembers)
		}
		if in.Reviewers != nil {
			p.Reviewers = NormaliseEmails(in.Reviewers)
		}
		if in.Approvers != nil {
			p.Approvers = NormaliseEmails(in.Approvers)
		}
		return nil
	})
}

// UpdateDeliverables sets item statuses for a phase. Unknown items are added.
func (s *Service) UpdateDeliverables(ctx context.Context, id, phaseCode string, items map[string]DeliverableStatus) (Project, error) {
	phase, err := gate.ParsePhase(phaseCode)
	if err != nil {
		return Project{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for label, status := range items {
		if strings.TrimSpace(label) == "" {
			return Project{}, fmt.Errorf("%w: deliverable label required", ErrInvalidInput)
		}
		if _, err := ParseDeliverableStatus(string(status)); err != nil {
			return Project{}, err
		}
	}
	return s.Update(ctx, id, func(p *Project) error {
		p.seedDeliverables(phase, nil)
		for label, status := range items {
			parsed, _ := ParseDeliverableStatus(string(status))
			p.Deliverables[phase][strings.TrimSpace(label)] = parsed
		}
		return nil
	})
}

// SetChecklistItem adds or removes a label from a phase checklist.
func (s *Service) SetChecklistItem(ctx context.Context, id, phaseCode, label string, checked bool) (Project, error) {
	phase, err := gate.ParsePhase(phaseCode)
	if err != nil {
		return Project{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return Project{}, fmt.Errorf("%w: checklist label required", ErrInvalidInput)
	}
	return s.Update(ctx, id, func(p *Project) error {
		p.setChecked(phase, label, checked)
		return nil
	})
}

func (s *Service) read(ctx context.Context, id string) (Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Project{}, ErrNotFound
	}
	doc, err := s.store.Load(ctx, s.projectKey(id))
	if err != nil {
		return Project{}, fmt.Errorf("load project %s: %w", id, err)
	}
	if doc == nil {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var p Project
	if err := docstore.Decode(doc, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *Service) write(ctx context.Context, p Project) error {
	doc, err := docstore.Encode(p)
	if err != nil {
		return err
	}
	res, err := s.store.Save(ctx, s.projectKey(p.ID), doc)
	if err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	if res.FellBack {
		common.Logger().Warn("project: saved to fallback store", "project", p.ID, "mode", res.Mode)
	}
	return nil
}

func (s *Service) readIndex(ctx context.Context) (indexDocument, error) {
	doc, err := s.store.Load(ctx, s.indexKey())
	if err != nil {
		return indexDocument{}, fmt.Errorf("load project index: %w", err)
	}
	var index indexDocument
	if doc == nil {
		return index, nil
	}
	if err := docstore.Decode(doc, &index); err != nil {
		return indexDocument{}, err
	}
	return index, nil
}

func (s *Service) writeIndex(ctx context.Context, index indexDocument) error {
	doc, err := docstore.Encode(index)
	if err != nil {
		return err
	}
	if _, err := s.store.Save(ctx, s.indexKey(), doc); err != nil {
		return fmt.Errorf("save project index: %w", err)
	}
	return nil
}

func summaryOf(p Project) Summary {
	return Summary{
		ID:        p.ID,
		Name:      p.Name,
		Industry:  p.Industry,
		Mode:      p.Mode,
		FELStage:  p.FELStage,
		CreatedAt: p.CreatedAt,
	}
}
