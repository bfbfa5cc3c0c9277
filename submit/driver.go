package submit

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autobill/auth"
	"github.com/autobill/browser"
	"github.com/autobill/config"
)

// CategoryOverseas routes card selection to the overseas corporate card row.
const CategoryOverseas = "해외결제 법인카드"

// Default form values applied when a table row matches no external record.
const (
	DefaultSummary  = "156"
	DefaultEvidence = "003"
	DefaultNote     = "OpenAI_GPT API 토큰 비용"
	DefaultProject  = "SAAS3002"
)

// Groupware widget ids. The groupware is a single product, so unlike the
// collection portals its selectors are fixed, not per-account profiles.
const (
	selUserID  = "#userId"
	selUserPw  = "#userPw"
	selCardBtn = "#btnExpendInterfaceCard"
	selHelpPop = "#btnExpendCardInfoHelpPop"
	selConfirm = "#btnConfirm"
	selSearch  = "#btnExpendCardListSearch"

	selFromDate = "#txtExpendCardFromDate"
	selToDate   = "#txtExpendCardToDate"

	selCardRows  = "#tblUserCardInfo .grid-content tbody tr"
	selTableRows = "#tblExpendCardList tbody tr"

	selDispSummary  = "#txtExpendCardDispSummary"
	selDispEvidence = "#txtExpendCardDispAuth"
	selDispNote     = "#txtExpendCardDispNote"
	selDispProject  = "#txtExpendCardDispProject"
	selSave         = "#btnExpendCardInfoSave"

	selProgressPopup = "#PLP_divMainProgPop"
	selNextPage      = "#tblExpendCardList_paginate a.paginate_button.next:not(.disabled)"
)

// loggedInMarker must appear in the URL after a successful groupware login;
// bad credentials re-render the same login page.
const loggedInMarker = "userMain.do"

// The select-card slot can be hijacked by an unrelated announcement popup.
// URLs decide which window actually opened.
var (
	noticeURLMarkers = []string{"gwpOpenNoticePopup", "notice"}
	cardURLMarkers   = []string{"UserCardInfoHelpPop", "UserCardUsageHistoryPop"}
)

const (
	popupTimeout    = 15 * time.Second
	popupRetries    = 4
	saveRetries     = 3
	alertProbe      = 3 * time.Second
	progressAppear  = 10 * time.Second
	progressCeiling = 2 * time.Minute
)

// Config tunes a submission run.
type Config struct {
	LoginURL   string
	ExpenseURL string
	Category   string
	// Tolerance is the widest amount difference, in won, accepted by the
	// fallback match.
	Tolerance int
	Headless  bool
	// DownloadDir only exists because every browser launch wires one; the
	// groupware flow downloads nothing.
	DownloadDir string
}

// Summary is the caller-facing outcome of a run. CredentialFailure marks the
// user-correctable case the API reports as handled rather than as a fault.
type Summary struct {
	Success           bool   `json:"success"`
	CredentialFailure bool   `json:"credential_failure,omitempty"`
	Message           string `json:"message"`
	Processed         int    `json:"processed_count"`
	Total             int    `json:"total_count"`
	Rounds            int    `json:"rounds"`
}

// Bot drives one synchronous submission run.
type Bot struct {
	cfg    Config
	logger *log.Logger
}

func NewBot(cfg Config, logger *log.Logger) *Bot {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 100
	}
	if cfg.Category == "" {
		cfg.Category = CategoryOverseas
	}
	return &Bot{cfg: cfg, logger: logger}
}

// Run logs into the groupware and reconciles the records against the expense
// table over as many pages as needed. A credential rejection comes back as a
// Summary with CredentialFailure set and a nil error.
func (b *Bot) Run(userID, password string, records []*Record, rng config.DateRange) (*Summary, error) {
	ledger := NewLedger(records, b.cfg.Tolerance)
	summary := &Summary{Total: ledger.Total()}

	account := &config.Account{
		Company: "groupware",
		Kind:    config.ServiceKind("expense"),
		SiteURL: b.cfg.LoginURL,
	}
	sess, err := browser.Launch(account, browser.Options{
		Headless:    b.cfg.Headless,
		DownloadDir: b.cfg.DownloadDir,
	}, b.logger)
	if err != nil {
		return summary, fmt.Errorf("browser launch: %w", err)
	}
	defer sess.Close()

	if err := b.login(sess, userID, password); err != nil {
		if isCredentialErr(err) {
			summary.CredentialFailure = true
			summary.Message = "그룹웨어 로그인 실패: 아이디 또는 비밀번호를 확인하세요"
			b.logger.Printf("Groupware login rejected for %s", userID)
			return summary, nil
		}
		return summary, err
	}

	if err := sess.Navigate(b.cfg.ExpenseURL); err != nil {
		return summary, fmt.Errorf("expense page: %w", err)
	}
	if err := b.setupCardInterface(sess, rng); err != nil {
		return summary, fmt.Errorf("card interface: %w", err)
	}

	if err := b.runRounds(sess, ledger, summary); err != nil {
		return summary, err
	}

	summary.Success = true
	summary.Processed = ledger.Consumed()
	summary.Message = fmt.Sprintf("%d건 중 %d건 반영 완료", summary.Total, summary.Processed)
	b.logger.Printf("Submission finished: %s (%d rounds)", summary.Message, summary.Rounds)
	return summary, nil
}

func isCredentialErr(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials)
}

func (b *Bot) login(sess *browser.Session, userID, password string) error {
	if err := sess.Navigate(b.cfg.LoginURL); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrPortalUnreachable, err)
	}

	top := sess.Top()
	if err := top.WaitVisible(selUserID, 15*time.Second); err != nil {
		return fmt.Errorf("%w: login form: %v", auth.ErrPortalUnreachable, err)
	}
	if err := top.SetValue(selUserID, userID); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrPortalUnreachable, err)
	}
	sess.DrainDialogs()
	// Typing the password ends with Enter, which submits the form.
	if err := top.SetValueTyped(selUserPw, password); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrPortalUnreachable, err)
	}

	if msg, ok := sess.NextDialog(alertProbe); ok {
		return fmt.Errorf("%w: %s", auth.ErrInvalidCredentials, msg)
	}

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		url, err := sess.CurrentURL()
		if err == nil && strings.Contains(url, loggedInMarker) {
			b.logger.Printf("Groupware login success for %s", userID)
			return nil
		}
		if msg, ok := sess.NextDialog(0); ok {
			return fmt.Errorf("%w: %s", auth.ErrInvalidCredentials, msg)
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("%w: login page still active", auth.ErrInvalidCredentials)
}

// setupCardInterface opens the card-expense panel, picks the card in the
// selection popup, enters the date range and runs the search.
func (b *Bot) setupCardInterface(sess *browser.Session, rng config.DateRange) error {
	top := sess.Top()
	if err := top.Click(selCardBtn, 3); err != nil {
		return fmt.Errorf("card panel button: %w", err)
	}

	popup, err := b.openCardPopup(sess)
	if err != nil {
		return err
	}
	if err := b.selectCard(popup); err != nil {
		popup.Close()
		return err
	}
	popup.Close()

	start, end := rng.Dashed()
	if err := b.enterDates(top, start, end); err != nil {
		return err
	}
	if err := top.Click(selSearch, 3); err != nil {
		return fmt.Errorf("search button: %w", err)
	}
	top.WaitMaskClear(10 * time.Second)

	// Newest-first ordering is convenience, not correctness.
	if err := top.ClickByText("label", "최신순", 1); err != nil {
		b.logger.Printf("Latest-first sort not applied: %v", err)
	}
	return nil
}

// openCardPopup clicks the select-card control and waits for the real card
// popup, closing announcement popups that grab the slot and retrying.
func (b *Bot) openCardPopup(sess *browser.Session) (*browser.Session, error) {
	top := sess.Top()
	for attempt := 0; attempt < popupRetries; attempt++ {
		wait := sess.ExpectPopup()
		if err := top.Click(selHelpPop, 3); err != nil {
			return nil, fmt.Errorf("select-card button: %w", err)
		}
		popup, err := wait(popupTimeout)
		if err != nil {
			return nil, err
		}

		url, _ := popup.CurrentURL()
		switch {
		case matchesAny(url, cardURLMarkers):
			return popup, nil
		case matchesAny(strings.ToLower(url), lowered(noticeURLMarkers)):
			b.logger.Printf("Announcement popup intercepted the card slot, closing: %s", url)
			popup.Close()
		default:
			b.logger.Printf("Unrecognized popup %s, closing and retrying", url)
			popup.Close()
		}
	}
	return nil, fmt.Errorf("card selection popup never appeared after %d attempts", popupRetries)
}

// selectCard picks the card row inside the popup. The overseas category
// matches the row text first; with no match it falls back to the second row
// (the overseas card's usual slot), then the first.
func (b *Bot) selectCard(popup *browser.Session) error {
	top := popup.Top()
	if err := top.WaitVisible(selCardRows, popupTimeout); err != nil {
		return fmt.Errorf("card list: %w", err)
	}

	rowTexts, err := top.Texts(selCardRows)
	if err != nil {
		return fmt.Errorf("card rows: %w", err)
	}
	if len(rowTexts) == 0 {
		return fmt.Errorf("card popup lists no cards")
	}

	rowIdx := 0
	if b.cfg.Category == CategoryOverseas {
		rowIdx = -1
		for i, text := range rowTexts {
			if strings.Contains(text, CategoryOverseas) || strings.Contains(text, "AI솔루션") {
				rowIdx = i
				break
			}
		}
		if rowIdx < 0 {
			if len(rowTexts) >= 2 {
				b.logger.Printf("Overseas card not matched by name, taking second row")
				rowIdx = 1
			} else {
				b.logger.Printf("Overseas card not matched by name, taking first row")
				rowIdx = 0
			}
		}
	}

	checkbox := fmt.Sprintf("#tblUserCardInfo .grid-content tbody tr:nth-child(%d) td:first-child input.PUDDCheckBox", rowIdx+1)
	if err := top.Click(checkbox, 3); err != nil {
		return fmt.Errorf("card checkbox: %w", err)
	}
	b.logger.Printf("Card selected: %s", firstLine(rowTexts[rowIdx]))

	if err := top.Click(selConfirm, 3); err != nil {
		// Confirm button id varies between popup revisions.
		if err := top.ClickByText("button", "확인", 2); err != nil {
			return fmt.Errorf("confirm button: %w", err)
		}
	}
	time.Sleep(time.Second)
	return nil
}

func (b *Bot) enterDates(top *browser.Scope, start, end string) error {
	for _, field := range []struct{ sel, val string }{
		{selFromDate, start},
		{selToDate, end},
	} {
		if err := top.SetValueTyped(field.sel, field.val); err != nil {
			// Date widgets sometimes eat native keys; the script path with a
			// change event is the fallback here, inverted from collection.
			if jsErr := top.SetValue(field.sel, field.val); jsErr != nil {
				return fmt.Errorf("date field %s: %w", field.sel, jsErr)
			}
		}
	}
	return nil
}

func matchesAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
