// File path: internal/artifact/document_repository.go
package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

const artifactsDocName = "artifacts"

// DocumentRepository keeps all versions of a project's artifacts in a single
// docstore document: {"next_seq": n, "artifacts": [...]}.
type DocumentRepository struct {
	store docstore.Store
	owner string
	mu    sync.Mutex
}

type artifactsDocument struct {
	NextSeq   int64      `json:"next_seq"`
	Artifacts []Artifact `json:"artifacts"`
}

func NewDocumentRepository(store docstore.Store, owner string) (*DocumentRepository, error) {
	if store == nil {
		return nil, errors.New("document store required")
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.New("owner required")
	}
	return &DocumentRepository{store: store, owner: owner}, nil
}

func (r *DocumentRepository) key(projectID string) docstore.Key {
	return docstore.Key{Owner: r.owner, Project: projectID, Name: artifactsDocName}
}

func (r *DocumentRepository) read(ctx context.Context, projectID string) (artifactsDocument, error) {
	doc, err := r.store.Load(ctx, r.key(projectID))
	if err != nil {
		return artifactsDocument{}, fmt.Errorf("load artifacts: %w", err)
	}
	var out artifactsDocument
	if doc == nil {
		return out, nil
	}
	if err := docstore.Decode(doc, &out); err != nil {
		return artifactsDocument{}, err
	}
	return out, nil
}

func (r *DocumentRepository) write(ctx context.Context, projectID string, contents artifactsDocument) error {
	doc, err := docstore.Encode(contents)
	if err != nil {
		return err
	}
	if _, err := r.store.Save(ctx, r.key(projectID), doc); err != nil {
		return fmt.Errorf("save artifacts: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Insert(ctx context.Context, a Artifact) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contents, err := r.read(ctx, a.ProjectID)
	if err != nil {
		return Artifact{}, err
	}
	contents.NextSeq++
	a.Seq = contents.NextSeq
	contents.Artifacts = append(contents.Artifacts, a)
	if err := r.write(ctx, a.ProjectID, contents); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

func (r *DocumentRepository) Get(ctx context.Context, projectID, artifactID string) (*Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contents, err := r.read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range contents.Artifacts {
		if contents.Artifacts[i].ID == artifactID {
			found := contents.Artifacts[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (r *DocumentRepository) Latest(ctx context.Context, projectID, artifactType, phaseID string) (*Artifact, error) {
	records, err := r.List(ctx, Query{ProjectID: projectID, Type: artifactType, PhaseID: phaseID})
	if err != nil {
		return nil, err
	}
	return latestOf(records), nil
}

func (r *DocumentRepository) List(ctx context.Context, q Query) ([]Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contents, err := r.read(ctx, q.ProjectID)
	if err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(contents.Artifacts))
	for _, a := range contents.Artifacts {
		if q.matches(a) {
			out = append(out, a)
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, projectID, artifactID string, status Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contents, err := r.read(ctx, projectID)
	if err != nil {
		return false, err
	}
	for i := range contents.Artifacts {
		if contents.Artifacts[i].ID != artifactID {
			continue
		}
		contents.Artifacts[i].Status = status
		contents.Artifacts[i].UpdatedAt = at
		if err := r.write(ctx, projectID, contents); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func latestOf(records []Artifact) *Artifact {
	var latest *Artifact
	for i := range records {
		if latest == nil || records[i].newer(*latest) {
			latest = &records[i]
		}
	}
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}

func sortOldestFirst(records []Artifact) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[j].newer(records[i])
	})
}

var _ Repository = (*DocumentRepository)(nil)
