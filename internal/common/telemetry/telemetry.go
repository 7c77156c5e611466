// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
)

var (
	initOnce sync.Once

	storeOpsTotal     *expvar.Map
	storeLatencyMS    *expvar.Map
	storeFallbacks    *expvar.Int
	storeErrorsTotal  *expvar.Map
	artifactSaves     *expvar.Int
	artifactApprovals *expvar.Int
	stageAdvances     *expvar.Map
	stageRejections   *expvar.Map
	toolRuns          *expvar.Map
	spanTotal         *expvar.Map
	spanLatencyMS     *expvar.Map
	httpRequests      *expvar.Map
)

func ensureInit() {
	initOnce.Do(func() {
		storeOpsTotal = expvar.NewMap("decisionmate_store_ops_total")
		storeLatencyMS = expvar.NewMap("decisionmate_store_latency_ms")
		storeFallbacks = expvar.NewInt("decisionmate_store_fallbacks_total")
		storeErrorsTotal = expvar.NewMap("decisionmate_store_errors_total")
		artifactSaves = expvar.NewInt("decisionmate_artifact_saves_total")
		artifactApprovals = expvar.NewInt("decisionmate_artifact_approvals_total")
		stageAdvances = expvar.NewMap("decisionmate_stage_advances_total")
		stageRejections = expvar.NewMap("decisionmate_stage_rejections_total")
		toolRuns = expvar.NewMap("decisionmate_tool_runs_total")
		spanTotal = expvar.NewMap("decisionmate_span_total")
		spanLatencyMS = expvar.NewMap("decisionmate_span_latency_ms")
		httpRequests = expvar.NewMap("decisionmate_http_requests_total")
	})
}

func normalise(key, fallback string) string {
	trimmed := strings.TrimSpace(strings.ToLower(key))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

// StartSpan logs the start of a named operation at debug level. The returned
// func logs its duration and adds it to the decisionmate_span_* maps.
func StartSpan(name string) func(attrs ...interface{}) {
	ensureInit()
	key := normalise(name, "span")
	start := time.Now()
	logger := common.Logger()
	logger.Debug("trace: start", "span", key)
	return func(attrs ...interface{}) {
		dur := time.Since(start)
		spanTotal.Add(key, 1)
		spanLatencyMS.Add(key, dur.Milliseconds())
		logger.Debug("trace: end", append([]interface{}{"span", key, "dur", dur}, attrs...)...)
	}
}

// RecordRequest counts an HTTP request by method, route pattern and status
// class ("GET /v1/projects 2xx").
func RecordRequest(method, route string, status int) {
	ensureInit()
	if strings.TrimSpace(route) == "" {
		route = "unmatched"
	}
	httpRequests.Add(fmt.Sprintf("%s %s %dxx", strings.ToUpper(method), route, status/100), 1)
}

// RecordStoreOp counts a document store operation ("save:local", "load:remote").
func RecordStoreOp(op, mode string, duration time.Duration, err error) {
	ensureInit()
	key := normalise(op, "op") + ":" + normalise(mode, "unknown")
	storeOpsTotal.Add(key, 1)
	if duration > 0 {
		storeLatencyMS.Add(key, duration.Milliseconds())
	}
	if err != nil {
		storeErrorsTotal.Add(key, 1)
	}
}

// RecordStoreFallback counts a remote failure that was served by the local store.
func RecordStoreFallback() {
	ensureInit()
	storeFallbacks.Add(1)
}

func RecordArtifactSave() {
	ensureInit()
	artifactSaves.Add(1)
}

func RecordArtifactApproval() {
	ensureInit()
	artifactApprovals.Add(1)
}

// RecordStageAdvance counts a successful transition keyed by target phase.
func RecordStageAdvance(to string) {
	ensureInit()
	stageAdvances.Add(normalise(to, "terminal"), 1)
}

// RecordStageRejection counts refused transitions keyed by reason
// ("unauthorized", "gate_not_ready").
func RecordStageRejection(reason string) {
	ensureInit()
	stageRejections.Add(normalise(reason, "unknown"), 1)
}

func RecordToolRun(toolID string) {
	ensureInit()
	toolRuns.Add(normalise(toolID, "unknown"), 1)
}

// FallbackCount returns the number of recorded store fallbacks.
func FallbackCount() int64 {
	ensureInit()
	return storeFallbacks.Value()
}
