package config

import (
	"fmt"
)

// ServiceKind identifies which usage-record service an account belongs to.
type ServiceKind string

const (
	KindSMS  ServiceKind = "sms"
	KindCall ServiceKind = "call"
	KindChat ServiceKind = "chat"
)

// Valid reports whether k is a known service kind.
func (k ServiceKind) Valid() bool {
	switch k {
	case KindSMS, KindCall, KindChat:
		return true
	}
	return false
}

// SessionKey is the registry key for a live browser session.
type SessionKey struct {
	Company string
	Kind    ServiceKind
}

func (k SessionKey) String() string {
	return k.Company + "_" + string(k.Kind)
}

// Account is one (company, service-kind) credential pair plus the structural
// selector profile for that vendor's portal. Immutable once loaded.
type Account struct {
	Company  string
	Kind     ServiceKind
	SiteURL  string
	Username string
	Password string
	Profile  Profile
}

// Key returns the session-registry key for this account.
func (a *Account) Key() SessionKey {
	return SessionKey{Company: a.Company, Kind: a.Kind}
}

// Validate checks the account fields that must be present before any browser
// is launched.
func (a *Account) Validate() error {
	if a.Company == "" {
		return fmt.Errorf("account: company name is empty")
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("account %s: unknown service kind %q", a.Company, a.Kind)
	}
	if a.SiteURL == "" {
		return fmt.Errorf("account %s/%s: site URL is empty", a.Company, a.Kind)
	}
	if a.Profile == nil {
		return fmt.Errorf("account %s/%s: no selector profile", a.Company, a.Kind)
	}
	return a.Profile.Validate()
}
