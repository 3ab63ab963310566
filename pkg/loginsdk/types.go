package loginsdk

// IdentifierRequest starts the flow. Remember asks for a long-lived
// session on the eventual login.
type IdentifierRequest struct {
	Identifier string `json:"identifier"`
	Remember   bool   `json:"remember,omitempty"`
}

// CodeRequest completes the flow. Code carries the passcode one digit per
// element, in order, exactly as a segmented input field posts it. Leading
// zeros are preserved.
type CodeRequest struct {
	Code []string `json:"code"`
}

// LoginResponse is returned when the code checks out.
type LoginResponse struct {
	// Token is a signed bearer token for the authenticated account.
	Token string `json:"token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// Redirect is where the host application wants the client to go next.
	Redirect string `json:"redirect,omitempty"`
}

// ErrorResponse is the JSON error envelope every endpoint uses.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`

	// RetryIn is set on rate-limit failures: seconds until the window resets.
	RetryIn int `json:"retry_in,omitempty"`

	// AttemptsLeft is set on incorrect-code failures when the service is
	// configured to disclose the remaining budget.
	AttemptsLeft *int `json:"attempts_left,omitempty"`
}

// HealthResponse is returned by the /livez and /readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}
