package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusOK       JobStatus = "OK"
	JobStatusFallback JobStatus = "FALLBACK" // tolerant domain served its default record
	JobStatusFailed   JobStatus = "FAILED"
)

// OTPPurpose scopes a one-time code to the flow that requested it.
type OTPPurpose string

const (
	OTPPurposeSignup OTPPurpose = "signup"
	OTPPurposeReset  OTPPurpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeSignup || p == OTPPurposeReset
}
