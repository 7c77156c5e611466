// File path: internal/project/project.go
package project

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
)

var (
	ErrNotFound     = errors.New("project: not found")
	ErrInvalidInput = errors.New("project: invalid input")
)

// DefaultMode is the workspace mode used when none is given.
const DefaultMode = "projects"

// DeliverableStatus tracks one phase deliverable.
type DeliverableStatus string

const (
	DeliverableNotStarted DeliverableStatus = "Not Started"
	DeliverableInProgress DeliverableStatus = "In Progress"
	DeliverableDone       DeliverableStatus = "Done"
)

// ParseDeliverableStatus accepts any casing and "_"/"-" separators.
func ParseDeliverableStatus(value string) (DeliverableStatus, error) {
	normalised := strings.ToLower(strings.TrimSpace(value))
	normalised = strings.NewReplacer("_", " ", "-", " ").Replace(normalised)
	switch normalised {
	case "", "not started", "notstarted", "todo":
		return DeliverableNotStarted, nil
	case "in progress", "inprogress", "doing":
		return DeliverableInProgress, nil
	case "done", "complete", "completed":
		return DeliverableDone, nil
	default:
		return "", fmt.Errorf("%w: unknown deliverable status %q", ErrInvalidInput, value)
	}
}

// Transition records one stage advance.
type Transition struct {
	From     gate.Phase `json:"from"`
	To       gate.Phase `json:"to"`
	Approver string     `json:"approver"`
	At       time.Time  `json:"at"`
}

// Project is the persisted state of one project workspace.
type Project struct {
	ID           string                                      `json:"id"`
	Name         string                                      `json:"name"`
	Industry     gate.Industry                               `json:"industry"`
	Mode         string                                      `json:"mode"`
	FELStage     gate.Phase                                  `json:"fel_stage"`
	TeamMembers  []string                                    `json:"team_members"`
	Reviewers    []string                                    `json:"reviewers"`
	Approvers    []string                                    `json:"approvers"`
	Deliverables map[gate.Phase]map[string]DeliverableStatus `json:"deliverables"`
	Checklist    map[gate.Phase][]string                     `json:"checklist"`
	History      []Transition                                `json:"history"`
	CreatedAt    time.Time                                   `json:"created_at"`
	UpdatedAt    time.Time                                   `json:"updated_at"`
}

// Namespace partitions tool snapshots and session documents.
func (p Project) Namespace() string {
	mode := strings.TrimSpace(p.Mode)
	if mode == "" {
		mode = DefaultMode
	}
	return string(p.Industry) + "_" + mode
}

func (p Project) IsApprover(email string) bool { return containsFold(p.Approvers, email) }

func (p Project) IsReviewer(email string) bool { return containsFold(p.Reviewers, email) }

// PhaseDeliverables returns a copy of the deliverables of one phase.
func (p Project) PhaseDeliverables(phase gate.Phase) map[string]DeliverableStatus {
	out := map[string]DeliverableStatus{}
	for label, status := range p.Deliverables[phase] {
		out[label] = status
	}
	return out
}

// PendingDeliverables lists the sorted labels of a phase that are not Done.
func (p Project) PendingDeliverables(phase gate.Phase) []string {
	var pending []string
	for label, status := range p.Deliverables[phase] {
		if status != DeliverableDone {
			pending = append(pending, label)
		}
	}
	sort.Strings(pending)
	return pending
}

// Checked returns the checked labels of a phase.
func (p Project) Checked(phase gate.Phase) []string {
	return append([]string{}, p.Checklist[phase]...)
}

func (p *Project) seedDeliverables(phase gate.Phase, items []string) {
	if p.Deliverables == nil {
		p.Deliverables = map[gate.Phase]map[string]DeliverableStatus{}
	}
	current := p.Deliverables[phase]
	if current == nil {
		current = map[string]DeliverableStatus{}
	}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := current[item]; !ok {
			current[item] = DeliverableNotStarted
		}
	}
	p.Deliverables[phase] = current
}

// SeedPhase adds any missing deliverables of a phase as Not Started.
func (p *Project) SeedPhase(phase gate.Phase, items []string) {
	p.seedDeliverables(phase, items)
}

func (p *Project) setChecked(phase gate.Phase, label string, checked bool) {
	if p.Checklist == nil {
		p.Checklist = map[gate.Phase][]string{}
	}
	set := map[string]struct{}{}
	for _, existing := range p.Checklist[phase] {
		set[existing] = struct{}{}
	}
	if checked {
		set[label] = struct{}{}
	} else {
		delete(set, label)
	}
	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	sort.Strings(out)
	p.Checklist[phase] = out
}

// NormaliseEmails trims, drops blanks and removes case-insensitive duplicates,
// keeping the first spelling.
func NormaliseEmails(values []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}

func containsFold(values []string, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), candidate) {
			return true
		}
	}
	return false
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases a name and collapses everything but letters and digits to
// single underscores.
func Slug(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "project"
	}
	return slug
}

// NewID builds "<slug>_<UTC timestamp>".
func NewID(name string, at time.Time) string {
	return Slug(name) + "_" + at.UTC().Format("20060102150405")
}
