package exitcodes

// Exit codes for docsweep
// These codes form the operational contract with scripts and operators
const (
	Success         = 0 // Run finished with no failures, or the operator cancelled
	InvalidConfig   = 2 // Configuration file invalid or missing
	SafetyViolation = 3 // Safety validator rejected at least one target
	RuntimeError    = 4 // Runtime error during execution (history database, metrics)
	InvalidManifest = 5 // Manifest missing or malformed, nothing deleted
	PartialFailure  = 6 // At least one target could not be removed
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case InvalidConfig:
		return "Invalid configuration"
	case SafetyViolation:
		return "Safety violation"
	case RuntimeError:
		return "Runtime error"
	case InvalidManifest:
		return "Invalid manifest"
	case PartialFailure:
		return "Partial failure"
	default:
		return "Unknown error"
	}
}
