// File path: internal/session/state.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

const docName = "session"

// Stakeholder is one row of the stakeholder register.
type Stakeholder struct {
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	Organisation string `json:"organisation,omitempty"`
	Email        string `json:"email,omitempty"`
	Influence    string `json:"influence,omitempty"`
	Interest     string `json:"interest,omitempty"`
}

// Action is one tracked action item.
type Action struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Owner    string    `json:"owner,omitempty"`
	Due      string    `json:"due,omitempty"`
	Status   string    `json:"status"`
	ClosedAt time.Time `json:"closed_at,omitempty"`
}

// MOCRequest is one management-of-change request.
type MOCRequest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Requester   string    `json:"requester,omitempty"`
	Impact      string    `json:"impact,omitempty"`
	Status      string    `json:"status"`
	RaisedAt    time.Time `json:"raised_at"`
	DecidedBy   string    `json:"decided_by,omitempty"`
}

// State is the per-project working state handed to tools. It is loaded at
// the start of a request and saved after the tool ran.
type State struct {
	Owner     string `json:"-"`
	Namespace string `json:"-"`
	ProjectID string `json:"-"`

	Stakeholders []Stakeholder `json:"stakeholders"`
	Actions      []Action      `json:"actions"`
	MOCRequests  []MOCRequest  `json:"moc_requests"`
	Artifacts    []string      `json:"artifacts"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// New returns an empty state bound to its document key.
func New(owner, namespace, projectID string) *State {
	return &State{
		Owner:        owner,
		Namespace:    namespace,
		ProjectID:    projectID,
		Stakeholders: []Stakeholder{},
		Actions:      []Action{},
		MOCRequests:  []MOCRequest{},
		Artifacts:    []string{},
	}
}

// Key is the document key the state is stored under.
func (s *State) Key() docstore.Key {
	return docstore.Key{Owner: s.Owner, Namespace: s.Namespace, Project: s.ProjectID, Name: docName}
}

// Load reads the state of a project, returning an empty state when none has
// been saved yet.
func Load(ctx context.Context, store docstore.Store, owner, namespace, projectID string) (*State, error) {
	if store == nil {
		return nil, errors.New("document store required")
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("project id required")
	}
	state := New(owner, namespace, projectID)
	doc, err := store.Load(ctx, state.Key())
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if doc == nil {
		return state, nil
	}
	if err := docstore.Decode(doc, state); err != nil {
		return nil, err
	}
	state.normalise()
	return state, nil
}

// Save persists the state.
func (s *State) Save(ctx context.Context, store docstore.Store, at time.Time) (docstore.SaveResult, error) {
	if store == nil {
		return docstore.SaveResult{}, errors.New("document store required")
	}
	s.normalise()
	s.UpdatedAt = at.UTC()
	doc, err := docstore.Encode(s)
	if err != nil {
		return docstore.SaveResult{}, err
	}
	res, err := store.Save(ctx, s.Key(), doc)
	if err != nil {
		return res, fmt.Errorf("save session: %w", err)
	}
	return res, nil
}

// AddArtifact remembers an artifact id produced during this session.
func (s *State) AddArtifact(id string) {
	for _, existing := range s.Artifacts {
		if existing == id {
			return
		}
	}
	s.Artifacts = append(s.Artifacts, id)
}

// NextID returns prefix-NNN, one past the highest number already used.
func NextID(prefix string, existing []string) string {
	highest := 0
	for _, id := range existing {
		var n int
		if _, err := fmt.Sscanf(strings.TrimPrefix(id, prefix+"-"), "%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, highest+1)
}

func (s *State) normalise() {
	if s.Stakeholders == nil {
		s.Stakeholders = []Stakeholder{}
	}
	if s.Actions == nil {
		s.Actions = []Action{}
	}
	if s.MOCRequests == nil {
		s.MOCRequests = []MOCRequest{}
	}
	if s.Artifacts == nil {
		s.Artifacts = []string{}
	}
}
