package server

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autobill/config"
	"github.com/autobill/submit"
	"github.com/autobill/task"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"mode":      "real_crawling",
		"timestamp": time.Now().Format(time.RFC3339),
		"sessions":  s.registry.Len(),
	})
}

func (s *Server) handleCompanies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"companies": s.source.Companies})
}

type collectRequest struct {
	CompanyName string `json:"company_name"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (s *Server) handleCollectData(c *gin.Context) {
	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "잘못된 요청 형식입니다"})
		return
	}
	if req.CompanyName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "필수 파라미터 누락: company_name"})
		return
	}
	if len(s.source.ForCompany(req.CompanyName)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("알 수 없는 회사: %s", req.CompanyName)})
		return
	}

	// Empty dates default to the previous calendar month, the usual billing
	// window.
	var rng config.DateRange
	if req.StartDate == "" && req.EndDate == "" {
		rng = config.PreviousMonth(time.Now())
	} else {
		var err error
		rng, err = config.ParseRange(req.StartDate, req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("날짜 형식 오류: %v", err)})
			return
		}
	}

	id := s.tasks.Start(func(h *task.Handle) {
		s.collectWorker(h, req.CompanyName, rng)
	})
	c.JSON(http.StatusOK, gin.H{"task_id": id, "status": "started"})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	snap, err := s.tasks.Get(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "작업을 찾을 수 없습니다"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleExpenseAutomation(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "파일이 업로드되지 않았습니다"})
		return
	}

	category := c.DefaultPostForm("category", submit.CategoryOverseas)
	startDate := c.PostForm("start_date")
	endDate := c.PostForm("end_date")
	userID := c.PostForm("user_id")
	password := c.PostForm("password")

	var missing []string
	for _, p := range []struct{ name, val string }{
		{"start_date", startDate}, {"end_date", endDate},
		{"user_id", userID}, {"password", password},
	} {
		if p.val == "" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("필수 파라미터가 누락되었습니다: %s", strings.Join(missing, ", ")),
		})
		return
	}

	// Submission dates arrive compact (YYYYMMDD).
	dashedStart, err1 := config.ReformatCompact(startDate)
	dashedEnd, err2 := config.ReformatCompact(endDate)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "날짜 형식이 올바르지 않습니다 (YYYYMMDD)"})
		return
	}
	rng, err := config.ParseRange(dashedStart, dashedEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("날짜 범위 오류: %v", err)})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("파일 읽기 실패: %v", err)})
		return
	}
	defer f.Close()
	records, err := ParseRecordsCSV(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   fmt.Sprintf("파일 로드 실패: %v", err),
		})
		return
	}
	s.logger.Printf("Expense automation: %s, %d record(s), %s", fileHeader.Filename, len(records), rng)

	cfg := s.cfg.Groupware
	cfg.Category = category
	cfg.Headless = s.cfg.Headless
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = s.cfg.DownloadDir
	}
	bot := submit.NewBot(cfg, s.logger)

	var runID int64
	if s.db != nil {
		runID, _ = s.db.BeginRun("", "submission", "", startDate, endDate)
	}

	summary, err := bot.Run(userID, password, records, rng)
	if err != nil {
		// System fault, not a user-correctable condition.
		if s.db != nil && runID != 0 {
			s.db.FinishRun(runID, "failed", err.Error())
		}
		s.logger.Printf("Expense automation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   fmt.Sprintf("자동화 실행 실패: %v", err),
		})
		return
	}

	if s.db != nil && runID != 0 {
		status := "completed"
		if !summary.Success {
			status = "handled_failure"
		}
		s.db.FinishRun(runID, status, summary.Message)
	}
	// Credential failure still answers 200: the caller fixes it, not us.
	c.JSON(http.StatusOK, summary)
}

// handleDownload serves an artifact by exact filename, falling back to a
// normalized substring match. Exports rename unpredictably between portal
// revisions, so the fuzzy path keeps old frontend links working.
func (s *Server) handleDownload(c *gin.Context) {
	raw := c.Param("filename")
	name, err := url.QueryUnescape(raw)
	if err != nil {
		name = raw
	}

	dirs := []string{s.cfg.DownloadDir}
	if s.cfg.ProcessedDir != "" {
		dirs = append(dirs, s.cfg.ProcessedDir)
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, filepath.Base(name))
		if _, err := os.Stat(path); err == nil {
			c.FileAttachment(path, name)
			return
		}
	}

	wanted := normalizeName(name)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			got := normalizeName(e.Name())
			if strings.Contains(got, wanted) || strings.Contains(wanted, got) {
				s.logger.Printf("Download fuzzy match: %q -> %q", name, e.Name())
				c.FileAttachment(filepath.Join(dir, e.Name()), name)
				return
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("파일을 찾을 수 없습니다: %s", name)})
}

func normalizeName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ReplaceAll(base, " 청구내역서", "")
	return strings.ToLower(strings.ReplaceAll(base, " ", ""))
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []struct{}{}})
		return
	}
	runs, err := s.db.RecentRuns(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
