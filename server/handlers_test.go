package server

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobill/config"
)

const handlerAccounts = `
companies:
  - 다온아이앤씨
accounts:
  - company: 다온아이앤씨
    kind: sms
    site_url: https://portal.example.com
    username: u
    password: p
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

func testRouter(t *testing.T, cfg Config) (*gin.Engine, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(handlerAccounts), 0644))
	source, err := config.LoadAccounts(path)
	require.NoError(t, err)

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = t.TempDir()
	}
	srv := New(cfg, source, nil, log.New(os.Stdout, "", 0))

	r := gin.New()
	srv.registerRoutes(r)
	return r, srv
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHandleHealth(t *testing.T) {
	r, _ := testRouter(t, Config{})

	w, body := doJSON(t, r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "real_crawling", body["mode"])
	assert.EqualValues(t, 0, body["sessions"])
}

func TestHandleCompanies(t *testing.T) {
	r, _ := testRouter(t, Config{})

	w, body := doJSON(t, r, http.MethodGet, "/api/companies", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"다온아이앤씨"}, body["companies"])
}

func TestHandleCollectData_Validation(t *testing.T) {
	r, _ := testRouter(t, Config{})

	w, body := doJSON(t, r, http.MethodPost, "/api/collect-data", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "company_name")

	w, body = doJSON(t, r, http.MethodPost, "/api/collect-data",
		`{"company_name":"없는회사"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "없는회사")

	w, _ = doJSON(t, r, http.MethodPost, "/api/collect-data",
		`{"company_name":"다온아이앤씨","start_date":"2025-05-31","end_date":"2025-05-01"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTaskStatus_Unknown(t *testing.T) {
	r, _ := testRouter(t, Config{})

	w, _ := doJSON(t, r, http.MethodGet, "/api/task-status/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleExpenseAutomation_MissingParams(t *testing.T) {
	r, _ := testRouter(t, Config{})

	// No multipart file at all.
	w, _ := doJSON(t, r, http.MethodPost, "/api/expense-automation", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDownload(t *testing.T) {
	downloads := t.TempDir()
	exact := "report.xlsx"
	require.NoError(t, os.WriteFile(filepath.Join(downloads, exact), []byte("data"), 0644))
	require.NoError(t, os.WriteFile(
		filepath.Join(downloads, "다온 청구내역서.xlsx"), []byte("data"), 0644))

	r, _ := testRouter(t, Config{DownloadDir: downloads})

	w, _ := doJSON(t, r, http.MethodGet, "/api/download/report.xlsx", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data", w.Body.String())

	// Fuzzy: requested name omits the report suffix.
	fuzzy := url.PathEscape("다온.xlsx")
	w, _ = doJSON(t, r, http.MethodGet, "/api/download/"+fuzzy, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/download/absent.xlsx", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRuns_NoDatabase(t *testing.T) {
	r, _ := testRouter(t, Config{})

	w, body := doJSON(t, r, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, body["runs"])
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "다온", normalizeName("다온 청구내역서.xlsx"))
	assert.Equal(t, "다온", normalizeName("다온.xlsx"))
	assert.Equal(t, "callreport", normalizeName("Call Report.XLSX"))
}
