// Package event defines the fixed set of login outcomes and the sink
// interface hosts implement to audit them. Every terminal outcome of either
// phase emits exactly one event before the phase returns.
package event

import "time"

// Kind enumerates every terminal outcome of the two login phases.
type Kind string

const (
	KindInvalidIdentifierFormat      Kind = "invalid_identifier_format"
	KindUserNotFound                 Kind = "user_not_found"
	KindIdentifierRateLimitExceeded  Kind = "identifier_rate_limit_exceeded"
	KindIdentifierRateLimitContinued Kind = "identifier_rate_limit_continued"
	KindLoginRequestViaTotp          Kind = "login_request_via_totp"
	KindMissingSessionInformation    Kind = "missing_session_information"
	KindMissingCodeData              Kind = "missing_code_data"
	KindInvalidCodeFormat            Kind = "invalid_code_format"
	KindCodeExpired                  Kind = "code_expired"
	KindIncorrectCode                Kind = "incorrect_code"
	KindCodeRateLimitExceeded        Kind = "code_rate_limit_exceeded"
	KindCodeRateLimitContinued       Kind = "code_rate_limit_continued"
	KindLoggedInViaTotp              Kind = "logged_in_via_totp"
)

// Event describes a single login outcome. Identifier may be empty when the
// outcome happens before an identifier is known (e.g. a malformed request).
type Event struct {
	Kind       Kind              `json:"kind"`
	Identifier string            `json:"identifier,omitempty"`
	IP         string            `json:"ip,omitempty"`
	At         time.Time         `json:"at"`
	Detail     map[string]string `json:"detail,omitempty"`
}
