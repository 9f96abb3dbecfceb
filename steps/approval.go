package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
)

// Request describes an operation awaiting a human decision. It carries
// everything the approval UI needs to render the gate.
type Request struct {
	Operation     string
	OperationType string
	RiskLevel     string
	Details       map[string]any
	Preview       string
	Action        string
	Reason        string
}

// Decision is the resolved outcome of an approval gate.
type Decision struct {
	Approved  bool
	Comment   string
	Timestamp string
}

// Approval gates a node on a human decision. On a fresh dispatch it returns
// a nil Decision and the suspension token the node must hand to
// graph.Suspend. On a resumed dispatch it interprets the delivered value and
// returns the decision with a nil token.
func Approval(ctx context.Context, req Request) (Decision, *graph.Suspension) {
	value, resumed := graph.ResumeValue(ctx)
	if !resumed {
		return Decision{}, req.token()
	}
	return Decide(value), nil
}

// ApprovalIfAtLeast gates only when the request's risk meets threshold on
// the low < medium < high < critical ladder. Below the threshold the
// operation auto-approves without suspending.
func ApprovalIfAtLeast(ctx context.Context, req Request, threshold string) (Decision, *graph.Suspension) {
	if RiskAtLeast(req.RiskLevel, threshold) {
		return Approval(ctx, req)
	}
	return Decision{
		Approved: true,
		Comment:  fmt.Sprintf("auto-approved: risk %s below threshold %s", req.RiskLevel, threshold),
	}, nil
}

// Decide interprets a resume payload as an approval decision. A missing
// payload rejects: an approval gate never approves by default.
func Decide(value any) Decision {
	switch v := value.(type) {
	case nil:
		return Decision{Approved: false, Comment: "No approval data provided on resume"}
	case bool:
		return Decision{Approved: v}
	case string:
		return Decision{Approved: v == "approve" || v == "approved"}
	case Decision:
		return v
	case map[string]any:
		var d Decision
		if approved, ok := v["approved"].(bool); ok {
			d.Approved = approved
		}
		if comment, ok := v["comment"].(string); ok {
			d.Comment = comment
		}
		if ts, ok := v["timestamp"].(string); ok {
			d.Timestamp = ts
		}
		return d
	}
	return Decision{}
}

// RiskAtLeast reports whether level meets threshold on the risk ladder.
// Unknown levels rank below low.
func RiskAtLeast(level, threshold string) bool {
	return riskRank(level) >= riskRank(threshold)
}

func riskRank(level string) int {
	switch level {
	case graph.RiskLow:
		return 0
	case graph.RiskMedium:
		return 1
	case graph.RiskHigh:
		return 2
	case graph.RiskCritical:
		return 3
	}
	return -1
}

// BuildDetails assembles the detail map approval UIs display: the operation
// and doctype plus the named key fields copied from doc when present.
func BuildDetails(operation, doctype string, doc map[string]any, keyFields ...string) map[string]any {
	details := map[string]any{
		"operation": operation,
		"doctype":   doctype,
	}
	for _, field := range keyFields {
		if v, ok := doc[field]; ok {
			details[field] = v
		}
	}
	return details
}

// Field is one labelled row of an approval preview.
type Field struct {
	Label string
	Value any
}

// Preview renders the markdown detail block approvers see: a heading line
// followed by one "- Label: value" row per field, in order.
func Preview(title string, fields ...Field) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s: %v\n", f.Label, f.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (req Request) token() *graph.Suspension {
	details := req.Details
	if req.Reason != "" {
		details = make(map[string]any, len(req.Details)+1)
		for k, v := range req.Details {
			details[k] = v
		}
		details["reason"] = req.Reason
	}
	action := req.Action
	if action == "" {
		action = "approve_or_reject"
	}
	return &graph.Suspension{
		Operation:     req.Operation,
		OperationType: req.OperationType,
		RiskLevel:     req.RiskLevel,
		Details:       details,
		Preview:       req.Preview,
		Action:        action,
	}
}
