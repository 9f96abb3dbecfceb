package steps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/log"
)

// Issue types an escalation can carry.
const (
	IssueTimeout          = "timeout"
	IssueError            = "error"
	IssueApprovalRequired = "approval_required"
	IssueQuality          = "quality_issue"
	IssueCustom           = "custom"
)

// DefaultEscalationRecipient receives escalations when none is named.
const DefaultEscalationRecipient = "Administrator"

// Escalation describes an issue that needs human attention outside the run.
type Escalation struct {
	WorkflowName string
	IssueType    string
	Severity     string
	Description  string
	Context      map[string]any
	EscalateTo   string
}

// EscalateResult reports where an escalation went.
type EscalateResult struct {
	Success        bool
	NotificationID string
	EscalatedTo    string
	Err            error
}

// Escalate delivers an escalation through the notifier, falling back to the
// local log when none is configured. The fallback still reports success so a
// notification outage never fails the workflow.
func Escalate(ctx context.Context, esc Escalation, notifier Notifier) EscalateResult {
	recipient := esc.EscalateTo
	if recipient == "" {
		recipient = DefaultEscalationRecipient
	}
	subject := escalationSubject(esc)
	body := escalationBody(esc)

	if notifier == nil {
		log.Warn("escalation (no notifier configured): %s", subject)
		return EscalateResult{
			Success:        true,
			NotificationID: fallbackNotificationID(),
			EscalatedTo:    recipient,
		}
	}

	id, err := notifier.Notify(ctx, Notification{
		Subject:   subject,
		Body:      body,
		Recipient: recipient,
		Kind:      "alert",
	})
	if err != nil {
		return EscalateResult{
			EscalatedTo: recipient,
			Err:         fmt.Errorf("failed to create escalation notification: %w", err),
		}
	}
	return EscalateResult{Success: true, NotificationID: id, EscalatedTo: recipient}
}

// EscalateTimeout reports a run stuck at a step. Waits past two hours
// escalate as high severity, shorter ones as medium.
func EscalateTimeout(ctx context.Context, workflowName, currentStep string, waited time.Duration, extra map[string]any, notifier Notifier) EscalateResult {
	severity := graph.RiskMedium
	if waited > 2*time.Hour {
		severity = graph.RiskHigh
	}
	hours := waited.Hours()
	details := mergedContext(extra, map[string]any{
		"current_step":             currentStep,
		"timeout_duration_seconds": waited.Seconds(),
		"timeout_duration_hours":   math.Round(hours*100) / 100,
	})
	return Escalate(ctx, Escalation{
		WorkflowName: workflowName,
		IssueType:    IssueTimeout,
		Severity:     severity,
		Description:  fmt.Sprintf("Workflow has been waiting at '%s' for %.1f hours", currentStep, hours),
		Context:      details,
	}, notifier)
}

// EscalateError reports a step failure. Errors always escalate as critical.
func EscalateError(ctx context.Context, workflowName, failedStep string, cause error, extra map[string]any, notifier Notifier) EscalateResult {
	details := mergedContext(extra, map[string]any{
		"failed_step":   failedStep,
		"error_message": cause.Error(),
	})
	return Escalate(ctx, Escalation{
		WorkflowName: workflowName,
		IssueType:    IssueError,
		Severity:     graph.RiskCritical,
		Description:  fmt.Sprintf("Error in '%s': %v", failedStep, cause),
		Context:      details,
	}, notifier)
}

// EscalateApprovalRequired notifies approvers out of band that a high-risk
// gate is waiting. Low risk still escalates as medium so the notification
// is never silently dropped.
func EscalateApprovalRequired(ctx context.Context, workflowName, action, riskLevel string, extra map[string]any, notifier Notifier) EscalateResult {
	severity := graph.RiskMedium
	switch riskLevel {
	case graph.RiskHigh:
		severity = graph.RiskHigh
	case graph.RiskCritical:
		severity = graph.RiskCritical
	}
	details := mergedContext(extra, map[string]any{
		"approval_action": action,
		"risk_level":      riskLevel,
	})
	return Escalate(ctx, Escalation{
		WorkflowName: workflowName,
		IssueType:    IssueApprovalRequired,
		Severity:     severity,
		Description:  fmt.Sprintf("High-risk approval required: %s", action),
		Context:      details,
	}, notifier)
}

func escalationSubject(esc Escalation) string {
	prefix := "⚠️"
	switch esc.Severity {
	case graph.RiskHigh:
		prefix = "🚨"
	case graph.RiskCritical:
		prefix = "🔥"
	}
	return fmt.Sprintf("%s %s: %s - %s", prefix, strings.ToUpper(esc.Severity), esc.WorkflowName, esc.IssueType)
}

func escalationBody(esc Escalation) string {
	lines := []string{
		fmt.Sprintf("**Workflow**: %s", esc.WorkflowName),
		fmt.Sprintf("**Issue Type**: %s", esc.IssueType),
		fmt.Sprintf("**Severity**: %s", esc.Severity),
		fmt.Sprintf("**Description**: %s", esc.Description),
		"",
		"**Context**:",
	}
	for _, key := range sortedKeys(esc.Context) {
		lines = append(lines, fmt.Sprintf("- **%s**: %v", key, esc.Context[key]))
	}
	lines = append(lines, "", fmt.Sprintf("**Escalated at**: %s", time.Now().UTC().Format(time.RFC3339)))
	return strings.Join(lines, "\n")
}

func fallbackNotificationID() string {
	return "NOTIF-" + time.Now().UTC().Format("20060102150405")
}

func mergedContext(extra, own map[string]any) map[string]any {
	merged := make(map[string]any, len(extra)+len(own))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
