package domain

import "testing"

func TestParseControlAction(t *testing.T) {
	tests := []struct {
		name     string
		customID string
		values   []string
		fields   map[string]string
		want     ControlAction
		wantErr  bool
	}{
		{name: "open support", customID: ControlIDOpen, values: []string{"support"}, want: ControlAction{Kind: ControlOpen, TicketKind: TicketKindSupport}},
		{name: "open unknown kind", customID: ControlIDOpen, values: []string{"refund"}, wantErr: true},
		{name: "open without value", customID: ControlIDOpen, wantErr: true},
		{name: "claim", customID: ControlIDClaim, want: ControlAction{Kind: ControlClaim}},
		{name: "close prompt", customID: ControlIDClose, want: ControlAction{Kind: ControlClose}},
		{name: "close reason trimmed", customID: ControlIDCloseReason, fields: map[string]string{CloseReasonField: "  Resolved "}, want: ControlAction{Kind: ControlCloseReason, Reason: "Resolved"}},
		{name: "priority", customID: ControlIDPriority, values: []string{"high"}, want: ControlAction{Kind: ControlSetPriority, Priority: TicketPriorityHigh}},
		{name: "priority invalid", customID: ControlIDPriority, values: []string{"urgent"}, wantErr: true},
		{name: "reopen", customID: ControlIDReopen, want: ControlAction{Kind: ControlReopen}},
		{name: "legacy id", customID: "ticket_close_btn", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseControlAction(tt.customID, tt.values, tt.fields)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseControlAction(%q) succeeded unexpectedly: %+v", tt.customID, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseControlAction(%q) failed: %v", tt.customID, err)
			}
			if got != tt.want {
				t.Errorf("ParseControlAction(%q) = %+v, want %+v", tt.customID, got, tt.want)
			}
		})
	}
}

func TestControlActionTicketScoped(t *testing.T) {
	if (ControlAction{Kind: ControlOpen}).TicketScoped() {
		t.Error("open action must not require a bound control message")
	}
	if !(ControlAction{Kind: ControlClaim}).TicketScoped() {
		t.Error("claim action must require a bound control message")
	}
}
