package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// KeyringService groups this tool's secrets in the OS keychain.
const KeyringService = "autobill"

// Source is the read-only account lookup handed to the workers, keyed by
// (company, service-kind).
type Source struct {
	Companies []string
	accounts  map[SessionKey]*Account
}

// Lookup returns the account for a key, or nil if none is configured.
func (s *Source) Lookup(company string, kind ServiceKind) *Account {
	return s.accounts[SessionKey{Company: company, Kind: kind}]
}

// ForCompany returns the accounts configured for one company, primary SMS
// first, then call, then chat.
func (s *Source) ForCompany(company string) []*Account {
	var out []*Account
	for _, kind := range []ServiceKind{KindSMS, KindCall, KindChat} {
		if a := s.accounts[SessionKey{Company: company, Kind: kind}]; a != nil {
			out = append(out, a)
		}
	}
	return out
}

type accountYAML struct {
	Company     string              `yaml:"company"`
	Kind        ServiceKind         `yaml:"kind"`
	SiteURL     string              `yaml:"site_url"`
	Username    string              `yaml:"username"`
	Password    string              `yaml:"password"`
	PasswordEnv string              `yaml:"password_env"`
	Family      PortalFamily        `yaml:"family"`
	ICS         *ICSProfile         `yaml:"ics"`
	NewAdmin    *NewAdminProfile    `yaml:"newadmin"`
	CallConsole *CallConsoleProfile `yaml:"callconsole"`
}

type fileYAML struct {
	Companies []string      `yaml:"companies"`
	Accounts  []accountYAML `yaml:"accounts"`
}

// LoadAccounts reads the account file and validates every profile. Passwords
// left empty in the file are resolved from the named environment variable
// first, then from the OS keychain.
func LoadAccounts(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var f fileYAML
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	src := &Source{
		Companies: f.Companies,
		accounts:  make(map[SessionKey]*Account, len(f.Accounts)),
	}

	for i := range f.Accounts {
		acct, err := f.Accounts[i].build()
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		key := acct.Key()
		if _, dup := src.accounts[key]; dup {
			return nil, fmt.Errorf("accounts[%d]: duplicate entry for %s", i, key)
		}
		src.accounts[key] = acct
	}

	return src, nil
}

func (y *accountYAML) build() (*Account, error) {
	profile, err := y.profile()
	if err != nil {
		return nil, err
	}

	password := y.Password
	if password == "" {
		password = resolvePassword(y.PasswordEnv, y.Company, y.Kind)
	}

	acct := &Account{
		Company:  y.Company,
		Kind:     y.Kind,
		SiteURL:  y.SiteURL,
		Username: y.Username,
		Password: password,
		Profile:  profile,
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	return acct, nil
}

func (y *accountYAML) profile() (Profile, error) {
	switch y.Family {
	case FamilyICS:
		if y.ICS == nil {
			return nil, fmt.Errorf("family %q declared but no ics block", y.Family)
		}
		return y.ICS, nil
	case FamilyNewAdmin:
		if y.NewAdmin == nil {
			return nil, fmt.Errorf("family %q declared but no newadmin block", y.Family)
		}
		return y.NewAdmin, nil
	case FamilyCallConsole:
		if y.CallConsole == nil {
			return nil, fmt.Errorf("family %q declared but no callconsole block", y.Family)
		}
		return y.CallConsole, nil
	default:
		return nil, fmt.Errorf("unknown portal family %q", y.Family)
	}
}

// resolvePassword looks up a password outside the accounts file: the named
// env var first, then the OS keychain under "<company>/<kind>". Returns ""
// when nothing is configured; login will then fail with invalid credentials
// rather than a config error, which is what the operators expect.
func resolvePassword(envName, company string, kind ServiceKind) string {
	if envName != "" {
		if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
			return v
		}
	}
	account := company + "/" + string(kind)
	if pw, err := keyring.Get(KeyringService, account); err == nil && strings.TrimSpace(pw) != "" {
		return pw
	}
	return ""
}

// SetPassword stores a portal password in the OS keychain.
func SetPassword(company string, kind ServiceKind, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password is empty")
	}
	return keyring.Set(KeyringService, company+"/"+string(kind), password)
}

// LoadDotenv loads a .env file if present. Missing file is not an error.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
