package service

import (
	"crypto/subtle"
	"strings"
)

// Production-labeled environments can never be allowlisted for the override
// code, no matter what the configuration says.
var productionEnvironments = map[string]struct{}{
	"production": {},
	"prod":       {},
}

// OverridePolicy decides whether a configured bypass code is accepted. The
// zero value disables the feature entirely.
type OverridePolicy struct {
	// Code is the configured bypass value. Nil means disabled; "no value
	// configured" is the only off switch, never a sentinel string.
	Code *string

	// Environments where the override is accepted. Production labels are
	// ignored even if listed.
	Environments []string

	// BypassIdentifiers are accepted in any environment, production
	// included. Meant for automated test accounts and vendor demos.
	BypassIdentifiers []string
}

// Allows reports whether the submitted code is accepted as an override for
// the given runtime environment and account identifier.
//
// Callers must run the regular hash comparison first and consult this only
// afterwards; Allows itself compares the code in constant time so the
// decision adds no measurable skew either way.
func (p OverridePolicy) Allows(environment, identifier, submitted string) bool {
	if p.Code == nil || *p.Code == "" || submitted == "" {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(*p.Code), []byte(submitted)) != 1 {
		return false
	}

	return p.allowedEnvironment(environment) || p.bypasses(identifier)
}

func (p OverridePolicy) allowedEnvironment(environment string) bool {
	if environment == "" {
		return false
	}
	if _, isProd := productionEnvironments[strings.ToLower(environment)]; isProd {
		return false
	}
	for _, env := range p.Environments {
		if env == environment {
			return true
		}
	}
	return false
}

func (p OverridePolicy) bypasses(identifier string) bool {
	if identifier == "" {
		return false
	}
	for _, id := range p.BypassIdentifiers {
		if strings.EqualFold(id, identifier) {
			return true
		}
	}
	return false
}
