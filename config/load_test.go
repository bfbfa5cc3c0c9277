package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAccounts = `
companies:
  - 다온아이앤씨
  - 앤하우스
accounts:
  - company: 다온아이앤씨
    kind: sms
    site_url: https://portal.example.com/login
    username: daon_admin
    password: secret
    family: ics
    ics:
      login:
        user_field: "#userId"
        pass_field: "#userPw"
        submit: "#btnLogin"
      menu_chain: ["#menuStats", "#menuUsage"]
      frame_index: 1
      listing:
        date_start: "#startDate"
        date_end: "#endDate"
        search_button: "#btnSearch"
        export_button: "#btnExcel"
        no_data_dialog: ".ax-dialog"
        no_data_ok: ".ax-dialog .btn-ok"
        no_data_text: "조회된 데이터가 없습니다"
  - company: 앤하우스
    kind: call
    site_url: https://console.example.com
    username: nhouse
    password: secret2
    family: callconsole
    callconsole:
      login:
        user_field: "input[name=login_id]"
        pass_field: "input[name=login_pw]"
        submit: "#login-btn"
      company_text: 앤하우스
      menu_text: 통화이력
      outbound_filter: "#filter-outbound"
      call_status_filter: "#filter-status input"
      call_status_steps: 2
      listing:
        date_start: "input[name=sdate]"
        date_end: "input[name=edate]"
        search_button: "#btn-search"
        export_button: "#btn-export"
        no_data_dialog: ".x-message-box"
        no_data_ok: ".x-message-box .x-btn"
        no_data_text: "데이터가 없습니다"
`

func writeAccounts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAccounts(t *testing.T) {
	src, err := LoadAccounts(writeAccounts(t, validAccounts))
	require.NoError(t, err)

	assert.Equal(t, []string{"다온아이앤씨", "앤하우스"}, src.Companies)

	acct := src.Lookup("다온아이앤씨", KindSMS)
	require.NotNil(t, acct)
	assert.Equal(t, FamilyICS, acct.Profile.Family())
	assert.Equal(t, "daon_admin", acct.Username)

	assert.Nil(t, src.Lookup("다온아이앤씨", KindCall))
	assert.Nil(t, src.Lookup("없는회사", KindSMS))
}

func TestLoadAccounts_ForCompanyOrder(t *testing.T) {
	body := validAccounts + `
  - company: 다온아이앤씨
    kind: call
    site_url: https://console.example.com
    username: daon_call
    password: x
    family: callconsole
    callconsole:
      login:
        user_field: "#u"
        pass_field: "#p"
        submit: "#s"
      company_text: 다온
      menu_text: 통화이력
      outbound_filter: "#f1"
      call_status_filter: "#f2"
      call_status_steps: 1
      listing:
        date_start: "#sd"
        date_end: "#ed"
        search_button: "#sb"
        export_button: "#eb"
        no_data_dialog: ".d"
        no_data_ok: ".ok"
        no_data_text: 없음
`
	src, err := LoadAccounts(writeAccounts(t, body))
	require.NoError(t, err)

	accts := src.ForCompany("다온아이앤씨")
	require.Len(t, accts, 2)
	assert.Equal(t, KindSMS, accts[0].Kind)
	assert.Equal(t, KindCall, accts[1].Kind)
}

func TestLoadAccounts_DuplicateRejected(t *testing.T) {
	// Same (company, kind) twice.
	dup := validAccounts + `
  - company: 다온아이앤씨
    kind: sms
    site_url: https://other.example.com
    username: second
    password: x
    family: ics
    ics:
      login:
        user_field: "#u"
        pass_field: "#p"
        submit: "#s"
      menu_chain: ["#m"]
      frame_index: 0
      listing:
        date_start: "#sd"
        date_end: "#ed"
        search_button: "#sb"
        export_button: "#eb"
        no_data_dialog: ".d"
        no_data_ok: ".ok"
        no_data_text: 없음
`
	_, err := LoadAccounts(writeAccounts(t, dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadAccounts_UnknownFamily(t *testing.T) {
	body := `
accounts:
  - company: x
    kind: sms
    site_url: https://x
    username: u
    password: p
    family: mystery
`
	_, err := LoadAccounts(writeAccounts(t, body))
	assert.Error(t, err)
}

func TestLoadAccounts_PasswordFromEnv(t *testing.T) {
	t.Setenv("TEST_PORTAL_PW", "from-env")
	body := `
accounts:
  - company: 다온아이앤씨
    kind: sms
    site_url: https://portal.example.com
    username: u
    password_env: TEST_PORTAL_PW
    family: ics
    ics:
      login:
        user_field: "#u"
        pass_field: "#p"
        submit: "#s"
      menu_chain: ["#m"]
      frame_index: 0
      listing:
        date_start: "#sd"
        date_end: "#ed"
        search_button: "#sb"
        export_button: "#eb"
        no_data_dialog: ".d"
        no_data_ok: ".ok"
        no_data_text: 없음
`
	src, err := LoadAccounts(writeAccounts(t, body))
	require.NoError(t, err)
	acct := src.Lookup("다온아이앤씨", KindSMS)
	require.NotNil(t, acct)
	assert.Equal(t, "from-env", acct.Password)
}
