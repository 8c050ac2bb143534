package tools

import (
	"testing"

	"github.com/praxishq/praxis/pkg/models"
)

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		tool  string
		input map[string]any
		want  models.RiskLevel
	}{
		{"delete_contact", nil, models.RiskCritical},
		{"payment_charge", nil, models.RiskCritical},
		{"transfer_funds", nil, models.RiskCritical},
		{"email_send", nil, models.RiskHigh},
		{"data_export", nil, models.RiskHigh},
		{"sms_send", nil, models.RiskHigh},
		{"create_contact", nil, models.RiskMedium},
		{"update_contact", nil, models.RiskMedium},
		{"trigger_workflow", nil, models.RiskMedium},
		{"crm_search", nil, models.RiskLow},
		{"get_weather", nil, models.RiskLow},
		{"unclassified_thing", nil, models.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			def := &Definition{Name: tt.tool}
			if got := AssessRisk(def, tt.input); got != tt.want {
				t.Errorf("AssessRisk(%s) = %s, want %s", tt.tool, got, tt.want)
			}
		})
	}
}

func TestAssessRiskBulkRecipients(t *testing.T) {
	recipients := make([]any, 11)
	for i := range recipients {
		recipients[i] = "someone@example.com"
	}

	def := &Definition{Name: "email_send"}
	if got := AssessRisk(def, map[string]any{"recipients": recipients}); got != models.RiskCritical {
		t.Errorf("11 recipients = %s, want critical", got)
	}
	if got := AssessRisk(def, map[string]any{"recipients": recipients[:10]}); got != models.RiskHigh {
		t.Errorf("10 recipients = %s, want high", got)
	}
	if got := AssessRisk(def, map[string]any{"to": recipients}); got != models.RiskCritical {
		t.Errorf(`"to" field with 11 entries = %s, want critical`, got)
	}
}

func TestRequiresApproval(t *testing.T) {
	plain := &Definition{Name: "crm_search"}
	dangerous := &Definition{Name: "shell_exec", Dangerous: true}

	if RequiresApproval(plain, models.RiskLow, nil) {
		t.Error("low risk should not require approval")
	}
	if RequiresApproval(plain, models.RiskMedium, nil) {
		t.Error("medium risk should not require approval")
	}
	if !RequiresApproval(plain, models.RiskHigh, nil) {
		t.Error("high risk should require approval by default")
	}
	if !RequiresApproval(plain, models.RiskCritical, nil) {
		t.Error("critical risk should always require approval")
	}
	if !RequiresApproval(dangerous, models.RiskLow, nil) {
		t.Error("dangerous tools always require approval")
	}

	optOut := []string{"No approval needed for high risk actions"}
	if RequiresApproval(plain, models.RiskHigh, optOut) {
		t.Error("constraint opt-out should skip approval for high risk")
	}
	if !RequiresApproval(plain, models.RiskCritical, optOut) {
		t.Error("opt-out must not apply to critical risk")
	}
}
