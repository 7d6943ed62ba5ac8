package walletflow

// Capability names a privileged wallet operation.
type Capability string

const (
	CapabilityTopUp         Capability = "topup"
	CapabilityGroupSend     Capability = "group_send"
	CapabilityAdminReset    Capability = "admin_reset"
	CapabilityVendorReports Capability = "vendor_reports"
)

const (
	departmentFinance = "Finance"
	roleCore          = "Core"
	roleFinanceCore   = "Finance Core"
)

// CanPerform is the single client-side authorization predicate. Top-up,
// admin reset, and vendor reports require the Finance department Core role.
// Group send requires a Core (or Finance Core) role plus a department to
// scope the roster query. The backend re-checks every call; this only
// decides what the UI offers.
func CanPerform(capability Capability, profile Profile) bool {
	switch capability {
	case CapabilityTopUp, CapabilityAdminReset, CapabilityVendorReports:
		return profile.Department == departmentFinance && profile.Role == roleCore
	case CapabilityGroupSend:
		if profile.Role != roleCore && profile.Role != roleFinanceCore {
			return false
		}
		return profile.Department != ""
	default:
		return false
	}
}
