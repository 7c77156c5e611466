// File path: internal/tools/registers.go
package tools

import (
	"sort"
	"strings"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/session"
)

const (
	ActionOpen   = "Open"
	ActionClosed = "Closed"

	MOCOpen     = "Open"
	MOCApproved = "Approved"
	MOCRejected = "Rejected"
)

// StakeholderRegister adds, updates and removes stakeholders.
type StakeholderRegister struct{}

type stakeholderInput struct {
	Op          string              `json:"op"`
	Stakeholder session.Stakeholder `json:"stakeholder"`
	Name        string              `json:"name"`
}

func (StakeholderRegister) ID() string { return "stakeholder_register" }

func (t StakeholderRegister) Execute(c *Context) (Snapshot, error) {
	snap := newSnapshot(t.ID(), c)
	var in stakeholderInput
	if err := c.Decode(&in); err != nil {
		return Snapshot{}, err
	}
	op := strings.ToLower(strings.TrimSpace(in.Op))
	if op == "" && strings.TrimSpace(in.Stakeholder.Name) != "" {
		op = "add"
	}
	switch op {
	case "add":
		entry := in.Stakeholder
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			snap.warn("stakeholder name is required")
			break
		}
		replaced := false
		for i := range c.Session.Stakeholders {
			if strings.EqualFold(c.Session.Stakeholders[i].Name, entry.Name) {
				c.Session.Stakeholders[i] = entry
				replaced = true
			}
		}
		if !replaced {
			c.Session.Stakeholders = append(c.Session.Stakeholders, entry)
		}
	case "remove":
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = strings.TrimSpace(in.Stakeholder.Name)
		}
		kept := c.Session.Stakeholders[:0]
		removed := false
		for _, s := range c.Session.Stakeholders {
			if strings.EqualFold(s.Name, name) {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		c.Session.Stakeholders = kept
		if !removed {
			snap.warn("stakeholder %q not found", name)
		}
	case "", "list":
	default:
		snap.warn("unknown op %q", in.Op)
	}
	byInfluence := map[string]int{}
	for _, s := range c.Session.Stakeholders {
		level := strings.ToLower(strings.TrimSpace(s.Influence))
		if level == "" {
			level = "unrated"
		}
		byInfluence[level]++
	}
	snap.Data["stakeholders"] = append([]session.Stakeholder{}, c.Session.Stakeholders...)
	snap.Data["count"] = len(c.Session.Stakeholders)
	snap.Data["by_influence"] = byInfluence
	return snap, nil
}

// ActionTracker keeps the project action log.
type ActionTracker struct{}

type actionInput struct {
	Op    string `json:"op"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Owner string `json:"owner"`
	Due   string `json:"due"`
}

func (ActionTracker) ID() string { return "action_tracker" }

func (t ActionTracker) Execute(c *Context) (Snapshot, error) {
	snap := newSnapshot(t.ID(), c)
	var in actionInput
	if err := c.Decode(&in); err != nil {
		return Snapshot{}, err
	}
	op := strings.ToLower(strings.TrimSpace(in.Op))
	if op == "" && strings.TrimSpace(in.Title) != "" {
		op = "add"
	}
	switch op {
	case "add":
		title := strings.TrimSpace(in.Title)
		if title == "" {
			snap.warn("action title is required")
			break
		}
		due := strings.TrimSpace(in.Due)
		if due != "" {
			if _, err := time.Parse("2006-01-02", due); err != nil {
				snap.warn("due date %q is not YYYY-MM-DD; left blank", due)
				due = ""
			}
		}
		ids := make([]string, 0, len(c.Session.Actions))
		for _, a := range c.Session.Actions {
			ids = append(ids, a.ID)
		}
		c.Session.Actions = append(c.Session.Actions, session.Action{
			ID:     session.NextID("A", ids),
			Title:  title,
			Owner:  strings.TrimSpace(in.Owner),
			Due:    due,
			Status: ActionOpen,
		})
	case "close":
		found := false
		for i := range c.Session.Actions {
			if c.Session.Actions[i].ID == strings.TrimSpace(in.ID) {
				c.Session.Actions[i].Status = ActionClosed
				c.Session.Actions[i].ClosedAt = c.Now
				found = true
			}
		}
		if !found {
			snap.warn("action %q not found", in.ID)
		}
	case "", "list":
	default:
		snap.warn("unknown op %q", in.Op)
	}
	open, closed := 0, 0
	overdue := []string{}
	today := c.Now.UTC().Format("2006-01-02")
	for _, a := range c.Session.Actions {
		if a.Status == ActionClosed {
			closed++
			continue
		}
		open++
		if a.Due != "" && a.Due < today {
			overdue = append(overdue, a.ID)
		}
	}
	sort.Strings(overdue)
	snap.Data["actions"] = append([]session.Action{}, c.Session.Actions...)
	snap.Data["open"] = open
	snap.Data["closed"] = closed
	snap.Data["overdue"] = overdue
	return snap, nil
}

// MOCRequestTool raises and decides management-of-change requests. Decisions
// are limited to the project's approvers.
type MOCRequestTool struct{}

type mocInput struct {
	Op          string `json:"op"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Requester   string `json:"requester"`
	Impact      string `json:"impact"`
	DecidedBy   string `json:"decided_by"`
}

func (MOCRequestTool) ID() string { return "moc_request" }

func (t MOCRequestTool) Execute(c *Context) (Snapshot, error) {
	snap := newSnapshot(t.ID(), c)
	var in mocInput
	if err := c.Decode(&in); err != nil {
		return Snapshot{}, err
	}
	op := strings.ToLower(strings.TrimSpace(in.Op))
	if op == "" && strings.TrimSpace(in.Title) != "" {
		op = "raise"
	}
	switch op {
	case "raise":
		title := strings.TrimSpace(in.Title)
		if title == "" {
			snap.warn("change title is required")
			break
		}
		ids := make([]string, 0, len(c.Session.MOCRequests))
		for _, r := range c.Session.MOCRequests {
			ids = append(ids, r.ID)
		}
		c.Session.MOCRequests = append(c.Session.MOCRequests, session.MOCRequest{
			ID:          session.NextID("MOC", ids),
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Requester:   strings.TrimSpace(in.Requester),
			Impact:      strings.TrimSpace(in.Impact),
			Status:      MOCOpen,
			RaisedAt:    c.Now,
		})
	case "approve", "reject":
		if !c.Project.IsApprover(in.DecidedBy) {
			snap.warn("%q is not an approver on this project", in.DecidedBy)
			break
		}
		status := MOCApproved
		if op == "reject" {
			status = MOCRejected
		}
		found := false
		for i := range c.Session.MOCRequests {
			req := &c.Session.MOCRequests[i]
			if req.ID != strings.TrimSpace(in.ID) {
				continue
			}
			found = true
			if req.Status != MOCOpen {
				snap.warn("change %s is already %s", req.ID, strings.ToLower(req.Status))
				continue
			}
			req.Status = status
			req.DecidedBy = strings.TrimSpace(in.DecidedBy)
		}
		if !found {
			snap.warn("change %q not found", in.ID)
		}
	case "", "list":
	default:
		snap.warn("unknown op %q", in.Op)
	}
	counts := map[string]int{MOCOpen: 0, MOCApproved: 0, MOCRejected: 0}
	for _, r := range c.Session.MOCRequests {
		counts[r.Status]++
	}
	snap.Data["requests"] = append([]session.MOCRequest{}, c.Session.MOCRequests...)
	snap.Data["counts"] = counts
	return snap, nil
}
