package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jubo/internal/auth"
	"jubo/internal/bulletin"
	"jubo/internal/config"
	"jubo/internal/gemini"
	appLog "jubo/internal/log"
	"jubo/internal/sheet"
)

// Suggester is what the suggest handler needs from the composer;
// *suggest.Composer satisfies it, tests supply fakes.
type Suggester interface {
	Suggest(ctx context.Context, table bulletin.Table, month time.Month) (gemini.Result, error)
}

// Server provides the dashboard HTTP API and the embedded static UI.
// 주요 엔드포인트: /api/stats, /api/history, /api/recurring,
// /api/search, /api/suggest, /api/refresh.
type Server struct {
	cfg       *config.Config
	loader    *sheet.Loader
	suggester Suggester
	loc       *time.Location
	mux       *http.ServeMux
}

// embeddedStatic contains the static dashboard UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, loader *sheet.Loader, suggester Suggester, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:       cfg,
		loader:    loader,
		suggester: suggester,
		loc:       loc,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 해시가 설정된 경우에는 비활성화로 취급한다.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.PasswordHash != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic
// Auth. Passwords are verified against the argon2id hash in the config.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	hash := s.cfg.BasicAuth.PasswordHash

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
		passMatch := false
		if ok && userMatch {
			var err error
			passMatch, err = auth.VerifyPassword(p, hash)
			if err != nil {
				appLog.Error("password verification failed", err)
				passMatch = false
			}
		}
		if !ok || !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Jubo", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartServer starts an HTTP server bound to cfg.Listen.
func StartServer(_ context.Context, cfg *config.Config, loader *sheet.Loader, suggester Suggester, loc *time.Location) error {
	s := NewServer(cfg, loader, suggester, loc)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/recurring", s.handleRecurring)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/suggest", s.handleSuggest)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)

	// Static dashboard UI (embedded via embed.FS).
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// table loads the current bulletin table. A load failure disables the
// calling view only; the handler answers 503 with a displayable reason.
func (s *Server) table(w http.ResponseWriter, r *http.Request) (bulletin.Table, bool) {
	t, err := s.loader.Load(r.Context(), false)
	if err != nil {
		appLog.Error("table load failed", err)
		writeError(w, http.StatusServiceUnavailable, "데이터를 불러올 수 없습니다. 시트 설정을 확인해주세요.")
		return nil, false
	}
	return t, true
}

// entryDTO is a JSON-friendly view of a bulletin entry.
type entryDTO struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

func toDTOs(entries []bulletin.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDTO{
			Date:     e.Date.Format("2006-01-02"),
			Category: e.Category,
			Title:    e.Title,
			Body:     e.Body,
		})
	}
	return out
}

// statsResponse is the dashboard header summary.
type statsResponse struct {
	Total      int      `json:"total"`
	FirstYear  int      `json:"first_year"`
	LastYear   int      `json:"last_year"`
	Categories []string `json:"categories"`
	LatestDate string   `json:"latest_date"`
	FetchedAt  string   `json:"fetched_at,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	stats := t.ComputeStats()
	resp := statsResponse{
		Total:      stats.Total,
		FirstYear:  stats.FirstYear,
		LastYear:   stats.LastYear,
		Categories: t.CategoryList(),
	}
	if stats.Total > 0 {
		resp.LatestDate = stats.LatestDate.Format("2006-01-02")
	}
	if _, fetchedAt, ok := s.loader.Cached(); ok {
		resp.FetchedAt = fetchedAt.In(s.loc).Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// historyGroup is one past year's entries for the current week.
type historyGroup struct {
	Year    int        `json:"year"`
	Entries []entryDTO `json:"entries"`

	// Expanded marks the group the UI opens by default (the newest year).
	Expanded bool `json:"expanded"`
}

// handleHistory answers "작년 이맘때는 어떤 일이 있었을까요?" — entries of
// past years matching the current week, newest year first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	ref := time.Now().In(s.loc)
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	history := bulletin.HistoricalWeek(t, ref)
	years := bulletin.HistoryYears(history)

	groups := make([]historyGroup, 0, len(years))
	for i, y := range years {
		groups = append(groups, historyGroup{
			Year:     y,
			Entries:  toDTOs(history[y]),
			Expanded: i == 0,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reference_date": ref.Format("2006-01-02"),
		"years":          groups,
	})
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	month, ok := parseMonth(w, r)
	if !ok {
		return
	}
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":  int(month),
		"events": bulletin.FindRecurring(t, month),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	results, total := bulletin.Search(t, q.Get("q"), q["category"])

	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"limit":   bulletin.SearchLimit,
		"results": toDTOs(results),
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	month, ok := parseMonth(w, r)
	if !ok {
		return
	}
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	outcome, err := s.suggester.Suggest(r.Context(), t, month)
	if err != nil {
		// Credential misconfiguration; everything else already comes
		// back as displayable text.
		appLog.Error("suggestion failed", err, "month", int(month))
		writeError(w, http.StatusServiceUnavailable, "API 키가 설정되지 않았습니다.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":      int(month),
		"suggestion": outcome.Text,
		"notice":     outcome.Notice,
	})
}

// handleRefresh forces a fresh pull, bypassing the TTL cache. The UI's
// "데이터 새로고침" button calls this.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	t, err := s.loader.Load(r.Context(), true)
	if err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusServiceUnavailable, "데이터를 불러올 수 없습니다. 시트 설정을 확인해주세요.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": len(t)})
}

// parseMonth reads month from query or form, 1..12.
func parseMonth(w http.ResponseWriter, r *http.Request) (time.Month, bool) {
	v := r.URL.Query().Get("month")
	if v == "" {
		v = r.PostFormValue("month")
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 12 {
		writeError(w, http.StatusBadRequest, "invalid month, want 1-12")
		return 0, false
	}
	return time.Month(n), true
}

// staticFileServer serves the embedded dashboard files.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /api/* 요청은 정적 UI에서 서빙하지 않는다.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
