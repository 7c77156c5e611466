// File path: internal/data/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/sqlite"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DECISIONMATE_OWNER",
		"DECISIONMATE_MODE",
		"DECISIONMATE_ARTIFACT_BACKEND",
		"DECISIONMATE_GATES_FILE",
		"DECISIONMATE_DOCSTORE_CONFIG_FILE",
		"DECISIONMATE_STORE_POLICY",
		"DECISIONMATE_DATA_DIR",
		"DECISIONMATE_REMOTE_URL",
		"DECISIONMATE_REMOTE_API_KEY",
		"DECISIONMATE_REMOTE_TIMEOUT",
		"DECISIONMATE_SQLITE_CONFIG_FILE",
		"DECISIONMATE_SQLITE_PATH",
		"DECISIONMATE_SQLITE_JOURNAL_MODE",
		"DECISIONMATE_SQLITE_SYNCHRONOUS",
		"DECISIONMATE_SQLITE_BUSY_TIMEOUT",
		"DECISIONMATE_SQLITE_MAX_OPEN_CONNS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Owner != "guest" {
		t.Errorf("Owner = %q", cfg.Owner)
	}
	if cfg.Mode != project.DefaultMode {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.ArtifactBackend != BackendDocument {
		t.Errorf("ArtifactBackend = %q", cfg.ArtifactBackend)
	}
	if cfg.Docstore.Policy != docstore.PolicyLocal {
		t.Errorf("Docstore.Policy = %q", cfg.Docstore.Policy)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DECISIONMATE_OWNER", "alice@example.com")
	t.Setenv("DECISIONMATE_MODE", "ops")
	t.Setenv("DECISIONMATE_ARTIFACT_BACKEND", "SQLite")
	t.Setenv("DECISIONMATE_SQLITE_PATH", "/tmp/dm.db")
	t.Setenv("DECISIONMATE_STORE_POLICY", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Owner != "alice@example.com" {
		t.Errorf("Owner = %q", cfg.Owner)
	}
	if cfg.Mode != "ops" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.ArtifactBackend != BackendSQLite {
		t.Errorf("ArtifactBackend = %q", cfg.ArtifactBackend)
	}
	if cfg.SQLite.Path != "/tmp/dm.db" {
		t.Errorf("SQLite.Path = %q", cfg.SQLite.Path)
	}
	if cfg.Docstore.Policy != docstore.PolicyMemory {
		t.Errorf("Docstore.Policy = %q", cfg.Docstore.Policy)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("DECISIONMATE_ARTIFACT_BACKEND", "firestore")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestWorkspaceIsCachedPerOwner(t *testing.T) {
	cfg := Config{Mode: "ops", Docstore: docstore.Config{Policy: docstore.PolicyLocal, DataDir: t.TempDir()}}
	orch, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	guest, err := orch.Workspace("")
	if err != nil {
		t.Fatalf("Workspace: %v", err)
	}
	if guest.Owner != "guest" {
		t.Fatalf("default owner = %q", guest.Owner)
	}
	again, err := orch.Workspace("guest")
	if err != nil {
		t.Fatalf("Workspace: %v", err)
	}
	if again != guest {
		t.Fatal("expected cached workspace")
	}
	if _, err := orch.Workspace("bob@example.com"); err != nil {
		t.Fatalf("Workspace: %v", err)
	}
	if got := orch.Owners(); len(got) != 2 || got[0] != "bob@example.com" || got[1] != "guest" {
		t.Fatalf("Owners = %v", got)
	}

	p, err := guest.Projects.Create(context.Background(), project.CreateInput{Name: "Plant", Industry: "manufacturing"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Mode != "ops" {
		t.Fatalf("Mode = %q", p.Mode)
	}
	if _, err := orch.SyncArtifacts(context.Background(), "", p.ID); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("SyncArtifacts err = %v", err)
	}
}

func TestSQLiteBackendAuditsAdvances(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	cfg := Config{
		ArtifactBackend: BackendSQLite,
		SQLite:          sqlite.Config{Path: filepath.Join(dir, "dm.db")},
	}
	orch, err := New(context.Background(), cfg, WithDocumentStore(docstore.NewMemoryStore()), WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })
	if orch.Catalog() == nil {
		t.Fatal("expected sqlite catalog")
	}

	ws, err := orch.Workspace("guest")
	if err != nil {
		t.Fatalf("Workspace: %v", err)
	}
	ctx := context.Background()
	p, err := ws.Projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it", Reviewers: []string{"qa@example.com"}, Approvers: []string{"lead@example.com"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	saved, err := ws.Artifacts.Save(ctx, artifact.SaveInput{ProjectID: p.ID, PhaseID: "FEL1", Workstream: "Business", Type: "it_business_case"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := ws.Artifacts.Approve(ctx, p.ID, saved.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := ws.Projects.Update(ctx, p.ID, func(p *project.Project) error {
		for label := range p.PhaseDeliverables("FEL1") {
			p.Deliverables["FEL1"][label] = project.DeliverableDone
		}
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, label := range orch.Gates().Checklist("FEL1", "it") {
		if _, err := ws.Projects.SetChecklistItem(ctx, p.ID, "FEL1", label, true); err != nil {
			t.Fatalf("SetChecklistItem: %v", err)
		}
	}
	result, err := ws.Controller.Advance(ctx, p.ID, "lead@example.com")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if result.To != "FEL2" {
		t.Fatalf("To = %q", result.To)
	}
	if ws.Catalog == nil || ws.Catalog.Owner() != "guest" {
		t.Fatalf("workspace catalog = %+v", ws.Catalog)
	}
	entries, err := ws.Catalog.AuditLog(ctx, p.ID, "stage_advanced")
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if len(entries) != 1 || entries[0].Detail != "FEL1 -> FEL2" {
		t.Fatalf("audit entries = %+v", entries)
	}
}

func TestSQLiteBackendKeepsOwnersApart(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	cfg := Config{
		ArtifactBackend: BackendSQLite,
		SQLite:          sqlite.Config{Path: filepath.Join(t.TempDir(), "dm.db")},
	}
	orch, err := New(context.Background(), cfg, WithDocumentStore(docstore.NewMemoryStore()), WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })
	ctx := context.Background()

	alice, err := orch.Workspace("alice@example.com")
	if err != nil {
		t.Fatalf("Workspace alice: %v", err)
	}
	bob, err := orch.Workspace("bob@example.com")
	if err != nil {
		t.Fatalf("Workspace bob: %v", err)
	}
	pa, err := alice.Projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it"})
	if err != nil {
		t.Fatalf("Create alice: %v", err)
	}
	pb, err := bob.Projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it"})
	if err != nil {
		t.Fatalf("Create bob: %v", err)
	}
	if pa.ID != pb.ID {
		t.Fatalf("expected colliding ids with a fixed clock, got %q and %q", pa.ID, pb.ID)
	}

	saved, err := alice.Artifacts.Save(ctx, artifact.SaveInput{ProjectID: pa.ID, PhaseID: "FEL1", Workstream: "Business", Type: "it_business_case"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	ok, err := bob.Artifacts.Approve(ctx, pb.ID, saved.ID)
	if err != nil {
		t.Fatalf("Approve as bob: %v", err)
	}
	if ok {
		t.Fatal("bob approved an artifact of alice")
	}
	latest, err := bob.Artifacts.GetLatest(ctx, pb.ID, "it_business_case", "FEL1")
	if err != nil || latest != nil {
		t.Fatalf("bob latest = %+v, %v", latest, err)
	}
	summary, err := bob.Tracker.StatusSummary(ctx, pb, "FEL1")
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if summary.Percent != 0 || len(summary.Done) != 0 || len(summary.Missing) != 1 {
		t.Fatalf("bob summary = %+v", summary)
	}

	own, err := alice.Artifacts.Get(ctx, pa.ID, saved.ID)
	if err != nil || own == nil || own.Status != artifact.StatusDraft {
		t.Fatalf("alice artifact after bob's attempt = %+v, %v", own, err)
	}
	bobAudit, err := bob.Catalog.AuditLog(ctx, pb.ID)
	if err != nil {
		t.Fatalf("AuditLog bob: %v", err)
	}
	if len(bobAudit) != 0 {
		t.Fatalf("bob sees audit rows of alice: %+v", bobAudit)
	}
	aliceAudit, err := alice.Catalog.AuditLog(ctx, pa.ID, "artifact_saved")
	if err != nil {
		t.Fatalf("AuditLog alice: %v", err)
	}
	if len(aliceAudit) != 1 || aliceAudit[0].Owner != "alice@example.com" {
		t.Fatalf("alice audit = %+v", aliceAudit)
	}
}

func TestSyncArtifactsCopiesDocuments(t *testing.T) {
	dir := t.TempDir()
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	repo, err := artifact.NewDocumentRepository(store, "guest")
	if err != nil {
		t.Fatalf("NewDocumentRepository: %v", err)
	}
	svc, err := artifact.NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	for _, kind := range []string{"it_business_case", "it_engineering_design"} {
		if _, err := svc.Save(ctx, artifact.SaveInput{ProjectID: "P1", PhaseID: "FEL1", Type: kind}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	cfg := Config{ArtifactBackend: BackendSQLite, SQLite: sqlite.Config{Path: filepath.Join(dir, "dm.db")}}
	orch, err := New(ctx, cfg, WithDocumentStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	n, err := orch.SyncArtifacts(ctx, "guest", "P1")
	if err != nil {
		t.Fatalf("SyncArtifacts: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported = %d", n)
	}
	n, err = orch.SyncArtifacts(ctx, "guest", "P1")
	if err != nil {
		t.Fatalf("SyncArtifacts: %v", err)
	}
	if n != 0 {
		t.Fatalf("second import = %d", n)
	}
}
