package config

import (
	"fmt"
)

// PortalFamily names a vendor portal family. Selector profiles are one tagged
// variant per family so that a missing or renamed selector fails when the
// profile is loaded, not deep inside a UI step.
type PortalFamily string

const (
	FamilyICS         PortalFamily = "ics"
	FamilyNewAdmin    PortalFamily = "newadmin"
	FamilyCallConsole PortalFamily = "callconsole"
)

// LoginSelectors locates the credential form on a portal's login page.
type LoginSelectors struct {
	UserField string `yaml:"user_field"`
	PassField string `yaml:"pass_field"`
	Submit    string `yaml:"submit"`
	// Consent is an optional terms checkbox clicked before submit.
	Consent string `yaml:"consent,omitempty"`
	// SoftphoneToggle, when set, is a widget that must be switched OFF before
	// login (it conflicts with automation). A plain click is unreliable on it,
	// so it is always script-clicked.
	SoftphoneToggle string `yaml:"softphone_toggle,omitempty"`
	// SuccessMarker is a URL fragment that must be present after submit.
	// Empty means absence-of-alert is the only success signal.
	SuccessMarker string `yaml:"success_marker,omitempty"`
	// PostLoginDialog is an optional confirmation dialog probed for (and
	// dismissed) right after login; absence is the normal case.
	PostLoginDialog string `yaml:"post_login_dialog,omitempty"`
}

func (s LoginSelectors) validate(ctx string) error {
	if s.UserField == "" || s.PassField == "" || s.Submit == "" {
		return fmt.Errorf("%s: login selectors require user_field, pass_field and submit", ctx)
	}
	return nil
}

// Facet is a named sub-scope (a brand) collected separately within one
// authenticated session. Facets are ordered; the last one is allowed to come
// back empty without failing the run.
type Facet struct {
	Name string `yaml:"name"`
	// OptionValue is the autocomplete option value when it differs from Name.
	OptionValue string `yaml:"option_value,omitempty"`
}

// ListingSelectors locates the data-listing screen widgets shared by the
// collection families.
type ListingSelectors struct {
	DateStart    string `yaml:"date_start"`
	DateEnd      string `yaml:"date_end"`
	SearchButton string `yaml:"search_button"`
	ExportButton string `yaml:"export_button"`
	NoDataDialog string `yaml:"no_data_dialog"`
	NoDataOK     string `yaml:"no_data_ok"`
	NoDataText   string `yaml:"no_data_text"`
}

func (s ListingSelectors) validate(ctx string) error {
	switch {
	case s.DateStart == "" || s.DateEnd == "":
		return fmt.Errorf("%s: listing selectors require date_start and date_end", ctx)
	case s.SearchButton == "":
		return fmt.Errorf("%s: listing selectors require search_button", ctx)
	case s.ExportButton == "":
		return fmt.Errorf("%s: listing selectors require export_button", ctx)
	}
	return nil
}

// Profile is the structural selector profile for one vendor portal. Each
// portal family is its own variant; Collection uses the family to decide the
// navigation shape.
type Profile interface {
	Family() PortalFamily
	Login() LoginSelectors
	Validate() error
}

// ICSProfile covers the ICS-style customer portals (iframe-hosted listing,
// sidebar menu chain, optional brand facets).
type ICSProfile struct {
	LoginSel LoginSelectors `yaml:"login"`
	// MenuChain is the 2-4 click path from the landing page to the listing
	// screen, in order.
	MenuChain []string `yaml:"menu_chain"`
	// FrameIndex is the index of the iframe hosting the listing widget.
	FrameIndex int              `yaml:"frame_index"`
	Listing    ListingSelectors `yaml:"listing"`

	// Facets, when non-empty, makes collection iterate brands.
	Facets      []Facet `yaml:"facets,omitempty"`
	FacetInput  string  `yaml:"facet_input,omitempty"`
	FacetRemove string  `yaml:"facet_remove,omitempty"`

	// Chat selectors enable the secondary chat-export pass on the same
	// session. Nil means the account has no chat pass.
	Chat *ChatSelectors `yaml:"chat,omitempty"`
}

// ChatSelectors drives the chat-list export reached from an already
// authenticated ICS session.
type ChatSelectors struct {
	MenuChain  []string         `yaml:"menu_chain"`
	FrameIndex int              `yaml:"frame_index"`
	TagRemove  string           `yaml:"tag_remove,omitempty"`
	Listing    ListingSelectors `yaml:"listing"`
}

func (p *ICSProfile) Family() PortalFamily  { return FamilyICS }
func (p *ICSProfile) Login() LoginSelectors { return p.LoginSel }

func (p *ICSProfile) Validate() error {
	if err := p.LoginSel.validate("ics"); err != nil {
		return err
	}
	if len(p.MenuChain) == 0 {
		return fmt.Errorf("ics: menu_chain is empty")
	}
	if p.FrameIndex < 0 {
		return fmt.Errorf("ics: frame_index %d is negative", p.FrameIndex)
	}
	if err := p.Listing.validate("ics"); err != nil {
		return err
	}
	if len(p.Facets) > 0 && p.FacetInput == "" {
		return fmt.Errorf("ics: facets declared but facet_input missing")
	}
	if p.Chat != nil {
		if len(p.Chat.MenuChain) == 0 {
			return fmt.Errorf("ics: chat pass declared but chat menu_chain is empty")
		}
		if err := p.Chat.Listing.validate("ics chat"); err != nil {
			return err
		}
	}
	return nil
}

// NewAdminProfile covers the rebuilt admin portals where the listing iframe is
// located by its src attribute rather than by index.
type NewAdminProfile struct {
	LoginSel    LoginSelectors   `yaml:"login"`
	MenuChain   []string         `yaml:"menu_chain"`
	FrameQuery  string           `yaml:"frame_query"`
	DateDisplay string           `yaml:"date_display,omitempty"`
	Listing     ListingSelectors `yaml:"listing"`
}

func (p *NewAdminProfile) Family() PortalFamily  { return FamilyNewAdmin }
func (p *NewAdminProfile) Login() LoginSelectors { return p.LoginSel }

func (p *NewAdminProfile) Validate() error {
	if err := p.LoginSel.validate("newadmin"); err != nil {
		return err
	}
	if len(p.MenuChain) == 0 {
		return fmt.Errorf("newadmin: menu_chain is empty")
	}
	if p.FrameQuery == "" {
		return fmt.Errorf("newadmin: frame_query is empty")
	}
	return p.Listing.validate("newadmin")
}

// CallConsoleProfile covers the ExtJS call-log consoles. The listing lives at
// top level (no iframe) and needs two filter widgets driven before search.
type CallConsoleProfile struct {
	LoginSel LoginSelectors `yaml:"login"`
	// CompanyText and MenuText are matched against node text because the
	// console renders its tree with generated ids.
	CompanyText string `yaml:"company_text"`
	MenuText    string `yaml:"menu_text"`

	OutboundFilter   string `yaml:"outbound_filter"`
	CallStatusFilter string `yaml:"call_status_filter"`
	// CallStatusSteps is how many options down the status list to walk.
	CallStatusSteps int `yaml:"call_status_steps"`

	Listing ListingSelectors `yaml:"listing"`
}

func (p *CallConsoleProfile) Family() PortalFamily  { return FamilyCallConsole }
func (p *CallConsoleProfile) Login() LoginSelectors { return p.LoginSel }

func (p *CallConsoleProfile) Validate() error {
	if err := p.LoginSel.validate("callconsole"); err != nil {
		return err
	}
	if p.CompanyText == "" || p.MenuText == "" {
		return fmt.Errorf("callconsole: company_text and menu_text are required")
	}
	if p.OutboundFilter == "" || p.CallStatusFilter == "" {
		return fmt.Errorf("callconsole: outbound_filter and call_status_filter are required")
	}
	return p.Listing.validate("callconsole")
}
