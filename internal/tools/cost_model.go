// File path: internal/tools/cost_model.go
package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

// CostModel totals qty*rate line items. Malformed numbers become warnings and
// the line counts as zero.
type CostModel struct{}

type costModelInput struct {
	Currency       string                   `json:"currency"`
	ContingencyPct interface{}              `json:"contingency_pct"`
	Items          []map[string]interface{} `json:"items"`
	Save           bool                     `json:"save_artifact"`
	Type           string                   `json:"type"`
}

// CostLine is one evaluated line item.
type CostLine struct {
	Name  string  `json:"name"`
	Qty   float64 `json:"qty"`
	Rate  float64 `json:"rate"`
	Total float64 `json:"total"`
}

func (CostModel) ID() string { return "cost_model" }

func (t CostModel) Execute(c *Context) (Snapshot, error) {
	snap := newSnapshot(t.ID(), c)
	var in costModelInput
	if err := c.Decode(&in); err != nil {
		return Snapshot{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	lines := make([]CostLine, 0, len(in.Items))
	subtotal := 0.0
	for i, item := range in.Items {
		name := strings.TrimSpace(fmt.Sprint(item["name"]))
		if item["name"] == nil || name == "" {
			name = fmt.Sprintf("item %d", i+1)
		}
		line := CostLine{Name: name}
		qty, qtyErr := parseNumber(item["qty"])
		if qtyErr != nil {
			snap.warn("%s: qty %v", name, qtyErr)
		}
		rate, rateErr := parseNumber(item["rate"])
		if rateErr != nil {
			snap.warn("%s: rate %v", name, rateErr)
		}
		if qtyErr == nil && rateErr == nil {
			line.Qty, line.Rate = qty, rate
			if total := qty * rate; isFinite(total) {
				line.Total = round2(total)
			} else {
				snap.warn("%s: qty*rate out of range; counted as 0", name)
			}
		}
		if next := subtotal + line.Total; isFinite(next) {
			subtotal = next
		} else {
			snap.warn("%s: subtotal out of range; line counted as 0", name)
			line.Total = 0
		}
		lines = append(lines, line)
	}
	contingencyPct := 0.0
	if in.ContingencyPct != nil {
		pct, err := parseNumber(in.ContingencyPct)
		if err != nil {
			snap.warn("contingency_pct %v; using 0", err)
		} else {
			contingencyPct = pct
		}
	}
	subtotal = round2(subtotal)
	contingency := round2(subtotal * contingencyPct / 100)
	if !isFinite(contingency) || !isFinite(subtotal+contingency) {
		snap.warn("contingency out of range; using 0")
		contingency = 0
	}
	snap.Data["currency"] = currency
	snap.Data["items"] = lines
	snap.Data["subtotal"] = subtotal
	snap.Data["contingency_pct"] = contingencyPct
	snap.Data["contingency"] = contingency
	snap.Data["total"] = round2(subtotal + contingency)

	if !in.Save {
		return snap, nil
	}
	artifactType := strings.TrimSpace(in.Type)
	if artifactType == "" {
		artifactType = costModelType(c)
	}
	phase := string(c.Project.FELStage)
	payload, err := docstore.Encode(snap.Data)
	if err != nil {
		return Snapshot{}, err
	}
	saved, ok, err := saveWithUpstream(c, &snap, artifact.SaveInput{
		ProjectID:  c.Project.ID,
		PhaseID:    phase,
		Workstream: workstreamFor(c.Gates, phase, string(c.Project.Industry), artifactType),
		Type:       artifactType,
		Data:       payload,
	})
	if err != nil {
		return Snapshot{}, err
	}
	if ok {
		snap.ArtifactID = saved.ID
	}
	return snap, nil
}

// costModelType picks the required "*_cost_model" type of the current phase,
// if the industry defines one.
func costModelType(c *Context) string {
	for _, req := range c.Gates.RequiredArtifacts(string(c.Project.FELStage), string(c.Project.Industry)) {
		if strings.HasSuffix(req.Type, "cost_model") {
			return req.Type
		}
	}
	return "Cost_Model"
}

// round2 rounds to cents. Magnitudes past 2^53 have no fractional part and
// would overflow when scaled.
func round2(v float64) float64 {
	if math.Abs(v) >= 1<<53 {
		return v
	}
	return math.Round(v*100) / 100
}
