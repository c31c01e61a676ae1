package chef

// DiagnosticKind names a failure that was absorbed instead of returned
type DiagnosticKind string

const (
	// DiagPageDropped is a search page that could not be fetched
	DiagPageDropped DiagnosticKind = "page_dropped"
	// DiagListingFailed is a direct listing that could not be fetched
	DiagListingFailed DiagnosticKind = "listing_failed"
	// DiagUnsupportedEnvelope is a data bag item in version 1 or 2 format
	DiagUnsupportedEnvelope DiagnosticKind = "unsupported_envelope"
	// DiagDecryptFailed is a data bag item field that could not be decrypted
	DiagDecryptFailed DiagnosticKind = "decrypt_failed"
	// DiagEncryptFailed is a data bag item field that could not be encrypted
	DiagEncryptFailed DiagnosticKind = "encrypt_failed"
)

// Diagnostic describes one absorbed failure
type Diagnostic struct {
	Kind  DiagnosticKind
	URL   string
	Index string
	Start int
	Field string
	Err   error
}

func (c *Chef) report(d Diagnostic) {
	if c.onDiagnostic != nil {
		c.onDiagnostic(d)
	}
}
