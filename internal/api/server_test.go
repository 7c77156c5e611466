// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/data/orchestrator"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/stage"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/tools"
)

func newTestServer(t *testing.T, cfg *Config) (*Server, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	orch, err := orchestrator.New(context.Background(), orchestrator.Config{}, orchestrator.WithDocumentStore(store))
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })
	srv, err := NewServer(orch, cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, store
}

func doRequest(t *testing.T, srv http.Handler, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func createProject(t *testing.T, srv http.Handler, owner string, in project.CreateInput) project.Project {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/v1/projects", owner, in)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d body=%s", rec.Code, rec.Body.String())
	}
	var p project.Project
	decodeBody(t, rec, &p)
	return p
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") == "application/json" {
		t.Fatal("healthz should be plain text")
	}
}

func TestDebugVarsExposesRequestCounters(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for i := 0; i < 2; i++ {
		if rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("healthz = %d", rec.Code)
		}
	}
	rec := doRequest(t, srv, http.MethodGet, "/debug/vars", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("debug vars status = %d body=%s", rec.Code, rec.Body.String())
	}
	var vars struct {
		Requests map[string]int64 `json:"decisionmate_http_requests_total"`
		Spans    map[string]int64 `json:"decisionmate_span_total"`
	}
	decodeBody(t, rec, &vars)
	if got := vars.Requests["GET /healthz 2xx"]; got < 2 {
		t.Fatalf("expected at least 2 healthz requests, got %d in %v", got, vars.Requests)
	}
	if got := vars.Spans["http get"]; got < 2 {
		t.Fatalf("expected at least 2 http get spans, got %d in %v", got, vars.Spans)
	}
}

func TestRequirementsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv, http.MethodGet, "/v1/industries/IT/phases/fel2/requirements", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp requirementsResponse
	decodeBody(t, rec, &resp)
	if resp.Industry != "it" || resp.Phase != "FEL2" || resp.Lookup != "found" {
		t.Fatalf("unexpected header fields: %+v", resp)
	}
	want := []string{"Architecture/it_engineering_design"}
	var got []string
	for _, req := range resp.Requirements {
		got = append(got, req.Workstream+"/"+req.Type)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("requirements mismatch (-want +got):\n%s", diff)
	}

	rec = doRequest(t, srv, http.MethodGet, "/v1/industries/aerospace/phases/FEL1/requirements", "", nil)
	decodeBody(t, rec, &resp)
	if resp.Lookup != "unknown_industry" || len(resp.Requirements) != 0 {
		t.Fatalf("unknown industry response = %+v", resp)
	}
}

func TestProjectsAreScopedByOwner(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	p := createProject(t, srv, "alice@example.com", project.CreateInput{Name: "Wind Farm", Industry: "Green Energy"})
	if p.FELStage != "FEL1" {
		t.Fatalf("FELStage = %q", p.FELStage)
	}

	rec := doRequest(t, srv, http.MethodGet, "/v1/projects/"+p.ID, "alice@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get own project = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/v1/projects/"+p.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("guest get = %d, want 404", rec.Code)
	}

	var list struct {
		Owner    string            `json:"owner"`
		Projects []project.Summary `json:"projects"`
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/v1/projects", "", nil), &list)
	if list.Owner != "guest" || len(list.Projects) != 0 {
		t.Fatalf("guest list = %+v", list)
	}

	rec = doRequest(t, srv, http.MethodPost, "/v1/projects", "", project.CreateInput{Name: "X", Industry: "aerospace"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown industry create = %d", rec.Code)
	}
}

func TestStageAdvanceFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	owner := "pm@example.com"
	p := createProject(t, srv, owner, project.CreateInput{
		Name:      "Portal",
		Industry:  "it",
		Reviewers: []string{"qa@example.com"},
		Approvers: []string{"lead@example.com"},
	})
	base := "/v1/projects/" + p.ID

	rec := doRequest(t, srv, http.MethodPost, base+"/stage/advance", owner, advanceRequest{Approver: "intern@example.com"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-approver advance = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, base+"/stage/advance", owner, advanceRequest{Approver: "lead@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("not ready advance = %d", rec.Code)
	}
	var refused struct {
		Readiness stage.Readiness `json:"readiness"`
	}
	decodeBody(t, rec, &refused)
	if diff := cmp.Diff([]string{"it_business_case"}, refused.Readiness.MissingArtifacts); diff != "" {
		t.Fatalf("missing artifacts (-want +got):\n%s", diff)
	}

	rec = doRequest(t, srv, http.MethodPost, base+"/artifacts", owner, artifact.SaveInput{Workstream: "Business", Type: "it_business_case", Data: map[string]interface{}{"npv": 1.5}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save artifact = %d %s", rec.Code, rec.Body.String())
	}
	var saved artifact.Artifact
	decodeBody(t, rec, &saved)
	if saved.Status != artifact.StatusDraft || saved.PhaseID != "FEL1" {
		t.Fatalf("saved = %+v", saved)
	}

	var summary stage.Summary
	decodeBody(t, doRequest(t, srv, http.MethodGet, base+"/phases/FEL1/summary", owner, nil), &summary)
	if summary.Percent != 0 || len(summary.Pending) != 1 {
		t.Fatalf("summary before approval = %+v", summary)
	}

	rec = doRequest(t, srv, http.MethodPost, base+"/artifacts/"+saved.ID+"/approve", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodPost, base+"/artifacts/"+saved.ID+"/submit", owner, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("submit approved = %d, want 409", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodPost, base+"/artifacts/nope/approve", owner, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("approve unknown = %d", rec.Code)
	}

	items := map[string]project.DeliverableStatus{}
	for label := range p.PhaseDeliverables("FEL1") {
		items[label] = project.DeliverableDone
	}
	rec = doRequest(t, srv, http.MethodPut, base+"/phases/FEL1/deliverables", owner, deliverablesRequest{Items: items})
	if rec.Code != http.StatusOK {
		t.Fatalf("deliverables = %d %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, srv, http.MethodPost, base+"/phases/FEL1/checklist", owner, checklistRequest{Label: "Sponsor identified"})
	var checklist stage.Checklist
	decodeBody(t, rec, &checklist)
	if checklist.Percent != 33 {
		t.Fatalf("checklist percent = %d", checklist.Percent)
	}

	var current stageResponse
	decodeBody(t, doRequest(t, srv, http.MethodGet, base+"/stage", owner, nil), &current)
	if !current.Readiness.Ready || current.Summary.Percent != 100 {
		t.Fatalf("stage = %+v", current)
	}

	rec = doRequest(t, srv, http.MethodPost, base+"/stage/advance", owner, advanceRequest{Approver: "LEAD@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance = %d %s", rec.Code, rec.Body.String())
	}
	var result stage.Result
	decodeBody(t, rec, &result)
	if result.From != "FEL1" || result.To != "FEL2" || result.Project.FELStage != "FEL2" {
		t.Fatalf("result = %+v", result)
	}

	rec = doRequest(t, srv, http.MethodGet, base+"/audit", owner, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("audit without catalog = %d", rec.Code)
	}
}

func TestToolRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	p := createProject(t, srv, "", project.CreateInput{Name: "Clinic", Industry: "healthcare"})
	base := "/v1/projects/" + p.ID + "/tools/"

	rec := doRequest(t, srv, http.MethodPost, base+"moc_request", "", map[string]interface{}{"title": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("disabled tool = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodPost, base+"rebar_layout", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tool = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, base+"action_tracker", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("snapshot before run = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, base+"artifact_form", "", map[string]interface{}{"phase": "FEL2", "type": "hc_care_model"})
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact_form = %d %s", rec.Code, rec.Body.String())
	}
	var snap tools.Snapshot
	decodeBody(t, rec, &snap)
	if diff := cmp.Diff([]string{"upstream hc_needs_assessment (FEL1) is not approved"}, snap.Warnings); diff != "" {
		t.Fatalf("warnings (-want +got):\n%s", diff)
	}

	rec = doRequest(t, srv, http.MethodPost, base+"action_tracker", "", map[string]interface{}{"title": "Book site visit"})
	if rec.Code != http.StatusOK {
		t.Fatalf("action_tracker = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, base+"action_tracker", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("last snapshot = %d", rec.Code)
	}
	decodeBody(t, rec, &snap)
	if snap.Tool != "action_tracker" || snap.Data["open"] != float64(1) {
		t.Fatalf("snapshot = %+v", snap)
	}

	var listed struct {
		Tools []string `json:"tools"`
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/v1/tools?industry=healthcare", "", nil), &listed)
	for _, id := range listed.Tools {
		if id == "moc_request" {
			t.Fatalf("moc_request listed for healthcare: %v", listed.Tools)
		}
	}
}

func TestRemoteStoreAgainstDocumentRoutes(t *testing.T) {
	srv, backing := newTestServer(t, &Config{DocumentAPIKey: "secret"})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	remote, err := docstore.NewRemoteStore(ctx, docstore.Config{RemoteURL: ts.URL, RemoteAPIKey: "secret", RemoteTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewRemoteStore: %v", err)
	}
	t.Cleanup(func() { _ = remote.Close() })
	if !remote.Available() {
		t.Fatal("remote should be available")
	}

	key := docstore.Key{Owner: "alice", Name: "proj1__WBS"}
	missing, err := remote.Load(ctx, key)
	if err != nil || missing != nil {
		t.Fatalf("Load missing = %v, %v", missing, err)
	}
	doc := docstore.Document{"nodes": []interface{}{map[string]interface{}{"id": "1"}}}
	res, err := remote.Save(ctx, key, doc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !res.OK || res.Mode != docstore.ModeRemote {
		t.Fatalf("SaveResult = %+v", res)
	}
	got, err := remote.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	stored, err := backing.Load(ctx, docstore.RawKey("alice", "proj1__WBS"))
	if err != nil {
		t.Fatalf("backing Load: %v", err)
	}
	if diff := cmp.Diff(doc, stored); diff != "" {
		t.Fatalf("backing mismatch (-want +got):\n%s", diff)
	}

	rec := doRequest(t, srv, http.MethodGet, "/v1/documents/alice/proj1__WBS", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated get = %d", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createProject(t, srv, "", project.CreateInput{Name: "Mine", Industry: "manufacturing"})
	var resp struct {
		Logs []map[string]interface{} `json:"logs"`
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/v1/logs?level=info", "", nil), &resp)
	if len(resp.Logs) == 0 {
		t.Fatal("expected captured log entries")
	}
}
