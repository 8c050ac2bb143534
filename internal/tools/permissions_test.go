package tools

import "testing"

func TestAllowed(t *testing.T) {
	tests := []struct {
		name  string
		allow []string
		deny  []string
		tool  string
		want  bool
	}{
		{"exact allow", []string{"crm_search"}, nil, "crm_search", true},
		{"not in allow list", []string{"crm_search"}, nil, "email_send", false},
		{"wildcard allow", []string{"crm_*"}, nil, "crm_update", true},
		{"wildcard prefix mismatch", []string{"crm_*"}, nil, "billing_crm", false},
		{"bare star allows all", []string{"*"}, nil, "anything", true},
		{"empty allow grants all", nil, nil, "anything", true},
		{"deny wins over allow", []string{"crm_*"}, []string{"crm_delete"}, "crm_delete", false},
		{"deny wildcard wins", []string{"*"}, []string{"payment_*"}, "payment_charge", false},
		{"deny without allow", nil, []string{"email_*"}, "email_send", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.allow, tt.deny, tt.tool); got != tt.want {
				t.Errorf("Allowed(%v, %v, %q) = %v, want %v", tt.allow, tt.deny, tt.tool, got, tt.want)
			}
		})
	}
}

func TestMissingPermissions(t *testing.T) {
	required := []string{"crm_read", "crm_write", "email_send"}
	allow := []string{"crm_*"}

	missing := MissingPermissions(required, allow, nil)
	if len(missing) != 1 || missing[0] != "email_send" {
		t.Errorf("MissingPermissions = %v, want [email_send]", missing)
	}

	if missing := MissingPermissions(required, nil, nil); missing != nil {
		t.Errorf("empty allow list should grant all, got missing %v", missing)
	}

	missing = MissingPermissions(required, []string{"*"}, []string{"crm_write"})
	if len(missing) != 1 || missing[0] != "crm_write" {
		t.Errorf("MissingPermissions with deny = %v, want [crm_write]", missing)
	}
}
