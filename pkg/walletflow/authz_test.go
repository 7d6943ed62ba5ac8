package walletflow

import "testing"

func TestCanPerform(t *testing.T) {
	t.Parallel()
	financeCore := Profile{Role: "Core", Department: "Finance"}
	eventsCore := Profile{Role: "Core", Department: "Events"}
	financeCoreRole := Profile{Role: "Finance Core", Department: "Events"}
	coordinator := Profile{Role: "Coordinator", Department: "Finance"}
	noDepartment := Profile{Role: "Core"}

	cases := []struct {
		name       string
		capability Capability
		profile    Profile
		want       bool
	}{
		{name: "finance core tops up", capability: CapabilityTopUp, profile: financeCore, want: true},
		{name: "events core cannot top up", capability: CapabilityTopUp, profile: eventsCore},
		{name: "coordinator cannot top up", capability: CapabilityTopUp, profile: coordinator},
		{name: "finance core resets", capability: CapabilityAdminReset, profile: financeCore, want: true},
		{name: "events core cannot reset", capability: CapabilityAdminReset, profile: eventsCore},
		{name: "finance core sees vendor reports", capability: CapabilityVendorReports, profile: financeCore, want: true},
		{name: "core with department group sends", capability: CapabilityGroupSend, profile: eventsCore, want: true},
		{name: "finance core role group sends", capability: CapabilityGroupSend, profile: financeCoreRole, want: true},
		{name: "coordinator cannot group send", capability: CapabilityGroupSend, profile: coordinator},
		{name: "core without department cannot group send", capability: CapabilityGroupSend, profile: noDepartment},
		{name: "unknown capability", capability: Capability("mint"), profile: financeCore},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CanPerform(tc.capability, tc.profile); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
