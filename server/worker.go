package server

import (
	"fmt"
	"path/filepath"

	"github.com/autobill/config"
	"github.com/autobill/task"
)

// collectWorker runs one company's collection on the task's goroutine. The
// company's accounts (sms, then call) are collected sequentially, each with
// its own login; the chat pass, when the sms profile declares one, rides the
// sms session inside the driver. Artifacts gathered before a later failure
// stay on the task.
func (s *Server) collectWorker(h *task.Handle, company string, rng config.DateRange) {
	accounts := s.source.ForCompany(company)
	if len(accounts) == 0 {
		h.Fail(fmt.Errorf("등록되지 않은 회사: %s", company))
		return
	}

	startStr, endStr := rng.Dashed()
	var runID int64
	if s.db != nil {
		runID, _ = s.db.BeginRun(h.ID(), "collection", company, startStr, endStr)
	}

	h.Logf("%s 데이터 수집 시작 (%s)", company, rng)
	h.Progress(5)

	step := 90 / len(accounts)
	for i, account := range accounts {
		h.Logf("%s/%s 수집 중...", company, account.Kind)

		outcome, err := s.collector.Collect(account, rng, false)
		if outcome != nil {
			for _, fr := range outcome.Facets {
				switch {
				case fr.File != "":
					name := filepath.Base(fr.File)
					h.AddFile(name)
					h.Logf("파일 수집 완료: %s", name)
					if s.db != nil && runID != 0 {
						s.db.AddArtifact(runID, name, fr.Name)
					}
				case fr.Failed:
					h.Logf("수집 실패한 항목 건너뜀: %s %s", account.Kind, fr.Name)
				case fr.Empty:
					h.Logf("조회 결과 없음: %s %s", account.Kind, fr.Name)
				}
			}
		}
		if err != nil {
			h.Logf("수집 실패: %v", err)
			if s.db != nil && runID != 0 {
				s.db.FinishRun(runID, "failed", err.Error())
			}
			h.Fail(fmt.Errorf("%s/%s 수집 실패: %v", company, account.Kind, err))
			return
		}

		h.Progress(5 + step*(i+1))
	}

	if s.db != nil && runID != 0 {
		s.db.FinishRun(runID, "completed", "")
	}
	h.Logf("%s 데이터 수집 완료", company)
	h.Complete()
}
