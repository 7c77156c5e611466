// File path: internal/project/service_test.go
package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
)

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	store, err := docstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	svc, err := NewService(store, "guest", gate.MustDefault(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateSeedsFEL1(t *testing.T) {
	now := time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC)
	svc := newTestService(t, now)
	ctx := context.Background()
	p, err := svc.Create(ctx, CreateInput{
		Name:      "Data Centre Upgrade!",
		Industry:  "Information Technology",
		Reviewers: []string{" Rev@Example.com ", "rev@example.com", ""},
		Approvers: []string{"boss@example.com"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID != "data_centre_upgrade_20240603083000" {
		t.Fatalf("unexpected id %q", p.ID)
	}
	if p.Industry != gate.IndustryIT || p.Mode != DefaultMode || p.FELStage != gate.PhaseFEL1 {
		t.Fatalf("unexpected project: %+v", p)
	}
	if p.Namespace() != "it_projects" {
		t.Fatalf("unexpected namespace %q", p.Namespace())
	}
	if diff := cmp.Diff([]string{"Rev@Example.com"}, p.Reviewers); diff != "" {
		t.Fatalf("reviewers mismatch (-want +got):\n%s", diff)
	}
	want := map[string]DeliverableStatus{
		"Business Case":           DeliverableNotStarted,
		"Stakeholder Map":         DeliverableNotStarted,
		"High-level Requirements": DeliverableNotStarted,
	}
	if diff := cmp.Diff(want, p.PhaseDeliverables(gate.PhaseFEL1)); diff != "" {
		t.Fatalf("deliverables mismatch (-want +got):\n%s", diff)
	}

	loaded, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(p, loaded); diff != "" {
		t.Fatalf("persisted project mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()
	if _, err := svc.Create(ctx, CreateInput{Name: "", Industry: "it"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Name: "x", Industry: "widgets"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown industry, got %v", err)
	}
}

func TestCreateSameSecondGetsDistinctIDs(t *testing.T) {
	svc := newTestService(t, time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC))
	ctx := context.Background()
	first, err := svc.Create(ctx, CreateInput{Name: "Pilot", Industry: "it"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.Create(ctx, CreateInput{Name: "Pilot", Industry: "it"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %q", first.ID)
	}
	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(list))
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	svc := newTestService(t, time.Now())
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTeamDeliverablesAndChecklist(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()
	p, err := svc.Create(ctx, CreateInput{Name: "Clinic", Industry: "healthcare"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err = svc.SetTeam(ctx, p.ID, TeamInput{Approvers: []string{"A@x.io", "a@x.io"}})
	if err != nil {
		t.Fatalf("set team: %v", err)
	}
	if !p.IsApprover("a@X.io") || p.IsReviewer("a@x.io") {
		t.Fatalf("unexpected roles: %+v", p)
	}
	p, err = svc.UpdateDeliverables(ctx, p.ID, "fel1", map[string]DeliverableStatus{
		"Clinical Needs Assessment": "done",
		"Extra Item":                "in_progress",
	})
	if err != nil {
		t.Fatalf("update deliverables: %v", err)
	}
	if diff := cmp.Diff([]string{"Extra Item", "Service Demand Forecast"}, p.PendingDeliverables(gate.PhaseFEL1)); diff != "" {
		t.Fatalf("pending mismatch (-want +got):\n%s", diff)
	}
	if _, err := svc.UpdateDeliverables(ctx, p.ID, "FEL1", map[string]DeliverableStatus{"x": "shipped"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad status, got %v", err)
	}
	for _, label := range []string{"b", "a", "b"} {
		if p, err = svc.SetChecklistItem(ctx, p.ID, "FEL1", label, true); err != nil {
			t.Fatalf("check %s: %v", label, err)
		}
	}
	p, err = svc.SetChecklistItem(ctx, p.ID, "FEL1", "b", false)
	if err != nil {
		t.Fatalf("uncheck: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, p.Checked(gate.PhaseFEL1)); diff != "" {
		t.Fatalf("checklist mismatch (-want +got):\n%s", diff)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Data Centre Upgrade!": "data_centre_upgrade",
		"  ":                   "project",
		"Oil & Gas -- North":   "oil_gas_north",
	}
	for input, want := range cases {
		if got := Slug(input); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}
