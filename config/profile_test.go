package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validLogin() LoginSelectors {
	return LoginSelectors{UserField: "#u", PassField: "#p", Submit: "#s"}
}

func validListing() ListingSelectors {
	return ListingSelectors{
		DateStart:    "#sd",
		DateEnd:      "#ed",
		SearchButton: "#sb",
		ExportButton: "#eb",
		NoDataDialog: ".dialog",
		NoDataOK:     ".ok",
		NoDataText:   "없음",
	}
}

func TestICSProfile_Validate(t *testing.T) {
	p := &ICSProfile{
		LoginSel:  validLogin(),
		MenuChain: []string{"#m1", "#m2"},
		Listing:   validListing(),
	}
	assert.NoError(t, p.Validate())
	assert.Equal(t, FamilyICS, p.Family())
}

func TestICSProfile_Validate_FacetsNeedInput(t *testing.T) {
	p := &ICSProfile{
		LoginSel:  validLogin(),
		MenuChain: []string{"#m1"},
		Listing:   validListing(),
		Facets:    []Facet{{Name: "일반"}, {Name: "선불"}},
	}
	assert.Error(t, p.Validate())

	p.FacetInput = "#facetInput"
	assert.NoError(t, p.Validate())
}

func TestICSProfile_Validate_ChatListing(t *testing.T) {
	p := &ICSProfile{
		LoginSel:  validLogin(),
		MenuChain: []string{"#m1"},
		Listing:   validListing(),
		Chat:      &ChatSelectors{},
	}
	assert.Error(t, p.Validate())

	p.Chat = &ChatSelectors{MenuChain: []string{"#chat"}, Listing: validListing()}
	assert.NoError(t, p.Validate())
}

func TestICSProfile_Validate_EmptyMenuChain(t *testing.T) {
	p := &ICSProfile{LoginSel: validLogin(), Listing: validListing()}
	assert.Error(t, p.Validate())
}

func TestNewAdminProfile_Validate(t *testing.T) {
	p := &NewAdminProfile{
		LoginSel:   validLogin(),
		MenuChain:  []string{"#m"},
		FrameQuery: "iframe[src*='usage']",
		Listing:    validListing(),
	}
	assert.NoError(t, p.Validate())

	p.FrameQuery = ""
	assert.Error(t, p.Validate())
}

func TestCallConsoleProfile_Validate(t *testing.T) {
	p := &CallConsoleProfile{
		LoginSel:         validLogin(),
		CompanyText:      "앤하우스",
		MenuText:         "통화이력",
		OutboundFilter:   "#f1",
		CallStatusFilter: "#f2",
		CallStatusSteps:  2,
		Listing:          validListing(),
	}
	assert.NoError(t, p.Validate())

	p.MenuText = ""
	assert.Error(t, p.Validate())
}

func TestAccount_Validate(t *testing.T) {
	profile := &ICSProfile{
		LoginSel:  validLogin(),
		MenuChain: []string{"#m"},
		Listing:   validListing(),
	}
	a := &Account{
		Company: "다온아이앤씨", Kind: KindSMS, SiteURL: "https://x",
		Username: "u", Password: "p", Profile: profile,
	}
	assert.NoError(t, a.Validate())

	bad := *a
	bad.Kind = ServiceKind("fax")
	assert.Error(t, bad.Validate())

	bad = *a
	bad.Profile = nil
	assert.Error(t, bad.Validate())
}

func TestSessionKey_String(t *testing.T) {
	a := &Account{Company: "앤하우스", Kind: KindCall}
	assert.Equal(t, "앤하우스_call", a.Key().String())
}
