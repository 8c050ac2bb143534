package tools

import (
	"strings"

	"github.com/praxishq/praxis/pkg/models"
)

// criticalPatterns are tool name patterns that are always critical,
// checked before any other classification.
var criticalPatterns = []string{
	"delete_*",
	"drop_*",
	"payment_*",
	"transfer_*",
	"bulk_delete*",
}

// highRiskNames mark actions with external blast radius.
var highRiskNames = []string{
	"email_send", "send_email",
	"sms_send", "send_sms",
	"data_export", "export_data",
}

// mutationNames mark known record mutations.
var mutationNames = []string{
	"create_contact", "contact_create",
	"update_contact", "contact_update",
	"trigger_workflow", "workflow_trigger",
}

// bulkRecipientThreshold is the recipient count above which a send
// becomes critical.
const bulkRecipientThreshold = 10

// AssessRisk classifies a prospective tool call from the static tool
// definition plus the shape of its input. Precedence, highest first:
// critical name patterns, bulk-recipient sends, high-risk action names,
// known mutations, read-only names, then a low default.
func AssessRisk(def *Definition, input map[string]any) models.RiskLevel {
	name := strings.ToLower(def.Name)

	if matchesAny(criticalPatterns, name) {
		return models.RiskCritical
	}
	if recipientCount(input) > bulkRecipientThreshold {
		return models.RiskCritical
	}
	for _, n := range highRiskNames {
		if strings.Contains(name, n) {
			return models.RiskHigh
		}
	}
	for _, n := range mutationNames {
		if strings.Contains(name, n) {
			return models.RiskMedium
		}
	}
	if strings.Contains(name, "get") || strings.Contains(name, "search") || strings.Contains(name, "query") {
		return models.RiskLow
	}
	return models.RiskLow
}

// recipientCount extracts how many recipients an input addresses, from
// either a "recipients" or "to" field holding an array.
func recipientCount(input map[string]any) int {
	for _, key := range []string{"recipients", "to"} {
		if v, ok := input[key]; ok {
			if list, ok := v.([]any); ok {
				return len(list)
			}
		}
	}
	return 0
}

// RequiresApproval decides whether a call must pass the approval gate:
// tools flagged dangerous always do, critical risk always does, and
// high risk does unless the agent's constraints explicitly opt out with
// a "no approval for high risk" style clause.
func RequiresApproval(def *Definition, risk models.RiskLevel, constraints []string) bool {
	if def.Dangerous {
		return true
	}
	switch risk {
	case models.RiskCritical:
		return true
	case models.RiskHigh:
		return !highRiskOptOut(constraints)
	default:
		return false
	}
}

func highRiskOptOut(constraints []string) bool {
	for _, c := range constraints {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "no approval") && strings.Contains(lc, "high") {
			return true
		}
	}
	return false
}
