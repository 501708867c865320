package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/justinas/alice"

	"famcal/internal/agenda"
	"famcal/internal/config"
	"famcal/internal/joke"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/window"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Server serves the live dashboard and the JSON views over the published
// agenda snapshot. Handlers only read the snapshot; refreshing happens in
// the scheduler (or on POST /api/refresh).
type Server struct {
	cfg       *config.Config
	store     *agenda.Store
	refresher *agenda.Refresher
	teller    joke.Teller
	loc       *time.Location
	now       func() time.Time
	mux       *http.ServeMux
}

// NewServer constructs a new Server. refresher may be nil, in which case
// /api/refresh answers 503. teller may be nil to always use the fallback
// joke.
func NewServer(cfg *config.Config, store *agenda.Store, refresher *agenda.Refresher, teller joke.Teller) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		teller:    teller,
		loc:       cfg.Location(),
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	chain := alice.New(recoverMiddleware, requestIDMiddleware, accessLogMiddleware)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		chain = chain.Append(s.basicAuthMiddleware)
	}
	return chain.Then(s.mux)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware guards all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="famcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		ErrorLog:          slog.NewLogLogger(appLog.Logger().Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /events.json", s.handleEvents)
	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// viewResponse is the dashboard context, shared by / and /api/view.
type viewResponse struct {
	Title       string                   `json:"title"`
	CurrentDay  string                   `json:"currentDay"`
	CurrentDate string                   `json:"currentDate"`
	Joke        string                   `json:"joke"`
	HorizonDays int                      `json:"horizonDays"`
	Today       []model.Event            `json:"today"`
	Upcoming    map[string][]model.Event `json:"upcoming"`
	UpdatedAt   *time.Time               `json:"updatedAt"`

	days []window.DayGroup
}

func (s *Server) buildView(ctx context.Context) viewResponse {
	now := s.now().In(s.loc)
	snap := s.store.Load()
	v := window.Select(snap.Events, now, s.cfg.HorizonDays)

	resp := viewResponse{
		Title:       s.cfg.Site.Title,
		CurrentDay:  now.Format("Monday"),
		CurrentDate: now.Format("January 02, 2006"),
		Joke:        joke.OrFallback(ctx, s.teller),
		HorizonDays: v.HorizonDays,
		Today:       v.Today,
		Upcoming:    v.Upcoming,
		days:        v.Days,
	}
	if s.store.Loaded() {
		updated := snap.UpdatedAt.In(s.loc)
		resp.UpdatedAt = &updated
	}
	return resp
}

type dashboardLine struct {
	Time  string
	Title string
}

type dashboardDay struct {
	Label string
	// Date is the ISO date of the group, exposed to page scripts.
	Date  string
	Lines []dashboardLine
}

func lines(events []model.Event, loc *time.Location) []dashboardLine {
	out := make([]dashboardLine, 0, len(events))
	for _, ev := range events {
		label := "All day"
		if !ev.AllDay {
			label = ev.Start.In(loc).Format("3:04 PM")
			if ev.End != nil && ev.End.After(ev.Start) {
				label += " - " + ev.End.In(loc).Format("3:04 PM")
			}
		}
		out = append(out, dashboardLine{Time: label, Title: ev.Title})
	}
	return out
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := s.buildView(r.Context())

	days := make([]dashboardDay, 0, len(v.days))
	for _, d := range v.days {
		days = append(days, dashboardDay{Label: d.Label, Date: d.Date.Format("2006-01-02"), Lines: lines(d.Events, s.loc)})
	}

	data := struct {
		viewResponse
		TodayLines []dashboardLine
		Days       []dashboardDay
	}{
		viewResponse: v,
		TodayLines:   lines(v.Today, s.loc),
		Days:         days,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		appLog.Error("dashboard render failed", err, "request_id", RequestID(r.Context()))
	}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	data := struct{ Title string }{Title: s.cfg.Site.Title}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "calendar.html", data); err != nil {
		appLog.Error("calendar render failed", err, "request_id", RequestID(r.Context()))
	}
}

// handlePreview serves the last dashboard screenshot from cfg.Capture.Output.
// http.ServeFile answers 404 until the first capture has been written.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Capture.Output == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

// handleEvents returns the published normalized list as-is.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Load().Events)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buildView(r.Context()))
}

// refreshResponse is the JSON response shape for /api/refresh.
type refreshResponse struct {
	Events     int       `json:"events"`
	UpdatedAt  time.Time `json:"updatedAt"`
	FeedErrors []string  `json:"feedErrors"`
}

// handleRefresh runs one refresh cycle synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh unavailable")
		return
	}

	snap, err := s.refresher.Refresh(r.Context())
	if err != nil {
		appLog.Error("manual refresh failed", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Events:     len(snap.Events),
		UpdatedAt:  snap.UpdatedAt,
		FeedErrors: snap.FeedErrors,
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
