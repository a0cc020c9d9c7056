// Package api is the local control api web server
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/demomode/api/models"
	"github.com/aouyang1/demomode/api/web/templates"
	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/session"
	"github.com/aouyang1/demomode/settings"
	"github.com/aouyang1/demomode/slideshow"
	"github.com/aouyang1/demomode/store"
)

const (
	defaultHistoryLimit = 50
	shutdownTimeout     = 5 * time.Second
)

// Session is the demo session controlled through the api.
type Session interface {
	StartSession() error
	StopSession()
	Restart() error
	Active() bool
	ID() string
	Status() session.Status
}

// Manager is a background task that may change the playlist.
type Manager interface {
	Run(ctx context.Context)
	Updates() <-chan bool
}

type WebServer struct {
	router   *gin.Engine
	db       *store.Database
	settings *settings.Store
	catalog  *content.Catalog
	session  Session
	display  Display

	managers []Manager

	// playlist changed, restart an active session
	Updated chan bool
}

func NewWebServer(db *store.Database, st *settings.Store, catalog *content.Catalog, sess Session, managers ...Manager) *WebServer {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	ws := &WebServer{
		router:   router,
		db:       db,
		settings: st,
		catalog:  catalog,
		session:  sess,
		managers: managers,
		Updated:  make(chan bool, 1),
	}

	// Setup routes
	ws.setupRoutes()

	return ws
}

func (ws *WebServer) setupRoutes() {
	ws.router.GET("/", ws.handleIndex)
	ws.router.GET("/status", ws.handleStatus)

	ws.router.GET("/content", ws.handleListContent)
	ws.router.GET("/content/export", ws.handleExportContent)
	ws.router.GET("/settings", ws.handleGetSettings)
	ws.router.GET("/history", ws.handleHistory)

	protected := ws.router.Group("/", ws.requireMasterPassword)
	protected.POST("/content", ws.handleAddContent)
	protected.DELETE("/content/:position", ws.handleRemoveContent)
	protected.POST("/content/import", ws.handleImportContent)
	protected.POST("/session/start", ws.handleStartSession)
	protected.POST("/session/stop", ws.handleStopSession)
	protected.PUT("/settings", ws.handleUpdateSettings)

	ws.router.GET("/display", ws.handleGetDisplay)
	protected.PUT("/display/:state", ws.handleUpdateDisplay)
}

// SetDisplay enables the display routes.
func (ws *WebServer) SetDisplay(d Display) {
	ws.display = d
}

// Handler exposes the router for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start runs the managers and serves addr until ctx is canceled.
func (ws *WebServer) Start(ctx context.Context, addr string) error {
	// listen for updates and restart the session
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ws.Updated:
				if !ws.session.Active() {
					continue
				}
				slog.Info("found new updates, restarting demo session")
				if err := ws.session.Restart(); err != nil {
					slog.Error("error while restarting demo session from update", "error", err)
				}
			}
		}
	}()

	for _, m := range ws.managers {
		go m.Run(ctx)
		go ws.forward(ctx, m.Updates())
	}

	srv := &http.Server{Addr: addr, Handler: ws.router}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}

func (ws *WebServer) forward(ctx context.Context, updates <-chan bool) {
	if updates == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			ws.notify()
		}
	}
}

func (ws *WebServer) notify() {
	select {
	case ws.Updated <- true:
	default:
		// restart already pending
	}
}

func (ws *WebServer) requireMasterPassword(c *gin.Context) {
	if !ws.settings.CheckMasterPassword(c.GetHeader(models.MasterPasswordHeader)) {
		slog.Warn("rejected request without valid master password", "method", c.Request.Method, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: session.ErrAccessDenied.Error()})
		return
	}
	c.Next()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// statusFor maps domain errors to http status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrInvalidEntry),
		errors.Is(err, content.ErrFormat),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrReadOnlyKey),
		errors.Is(err, settings.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, content.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, slideshow.ErrEmptyPlaylist):
		return http.StatusConflict
	case errors.Is(err, session.ErrAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), models.ErrorResponse{Error: err.Error()})
}

func (ws *WebServer) status() models.StatusResponse {
	st := ws.session.Status()
	resp := models.StatusResponse{
		SessionID:      st.SessionID,
		Active:         st.Active,
		Fullscreen:     st.Fullscreen,
		KeyboardLocked: st.KeyboardLocked,
		MouseLocked:    st.MouseLocked,
		Challenging:    st.Challenging,
		LastActivity:   st.LastActivity,
		Current:        st.Current,
		ContentCount:   ws.catalog.Len(),
	}
	if st.Current != nil {
		resp.Position = st.Position + 1
	}
	return resp
}

func (ws *WebServer) handleIndex(c *gin.Context) {
	view := templates.StatusView{
		Status:  ws.status(),
		Content: ws.catalog.Entries(),
	}
	if ws.db != nil {
		plays, err := ws.db.RecentPlays(10)
		if err != nil {
			slog.Warn("unable to load recent plays", "error", err)
		}
		view.Plays = plays
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := templates.StatusPage(view).Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render status page", "error", err)
	}
}

func (ws *WebServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ws.status())
}

func (ws *WebServer) handleListContent(c *gin.Context) {
	entries := ws.catalog.Entries()
	c.JSON(http.StatusOK, models.ContentListResponse{Content: entries, Total: len(entries)})
}

func (ws *WebServer) handleAddContent(c *gin.Context) {
	var req models.AddContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	entry := content.Entry{
		Kind:       content.Kind(req.Type),
		Path:       req.Path,
		Name:       req.Name,
		Duration:   req.Duration,
		LaunchMode: content.LaunchMode(req.LaunchMode),
	}
	added, err := ws.catalog.Add(entry)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AddContentResponse{
		Position: ws.catalog.Len(),
		Entry:    added,
		Message:  fmt.Sprintf("Added %s", added.Name),
	})
	ws.notify()
}

func (ws *WebServer) handleRemoveContent(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid position parameter"})
		return
	}

	removed, err := ws.catalog.Remove(position - 1)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RemoveContentResponse{
		Entry:   removed,
		Message: fmt.Sprintf("Removed %s", removed.Name),
	})
	ws.notify()
}

func (ws *WebServer) handleExportContent(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="demo_content.json"`)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/json")
	if err := ws.catalog.Export(c.Writer); err != nil {
		slog.Error("failed to export content", "error", err)
	}
}

func (ws *WebServer) handleImportContent(c *gin.Context) {
	if err := ws.catalog.Import(c.Request.Body); err != nil {
		abortWithError(c, err)
		return
	}

	total := ws.catalog.Len()
	c.JSON(http.StatusOK, models.ImportResponse{
		Total:   total,
		Message: fmt.Sprintf("Imported %d entries", total),
	})
	ws.notify()
}

func (ws *WebServer) handleStartSession(c *gin.Context) {
	if err := ws.session.StartSession(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.status())
}

func (ws *WebServer) handleStopSession(c *gin.Context) {
	id := ws.session.ID()
	ws.session.StopSession()

	if ws.db != nil && id != "" {
		if err := ws.db.RecordExitAttempt(store.ExitAttempt{
			SessionID: id,
			At:        time.Now(),
			Outcome:   "api",
		}); err != nil {
			slog.Warn("unable to record exit attempt", "error", err)
		}
	}
	c.JSON(http.StatusOK, ws.status())
}

func settingsResponse(st settings.Settings) models.SettingsResponse {
	return models.SettingsResponse{
		HasMasterPassword:     st.HasMasterPassword(),
		AutoStartDemo:         st.AutoStartDemo,
		PhotoDuration:         st.PhotoDuration,
		VideoDuration:         st.VideoDuration,
		AppDuration:           st.AppDuration,
		WebDuration:           st.WebDuration,
		InactivityTimeout:     st.InactivityTimeout,
		KeyboardLockEnabled:   st.KeyboardLockEnabled,
		MouseLockEnabled:      st.MouseLockEnabled,
		KeepPlayingOnActivity: st.KeepPlayingOnActivity,
		ScheduleEnabled:       st.ScheduleEnabled,
		ScheduleStart:         st.ScheduleStart,
		ScheduleEnd:           st.ScheduleEnd,
	}
}

func (ws *WebServer) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, settingsResponse(ws.settings.Settings()))
}

func (ws *WebServer) handleUpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	for name, v := range map[string]*int{
		"photo_duration":     req.PhotoDuration,
		"video_duration":     req.VideoDuration,
		"app_duration":       req.AppDuration,
		"web_duration":       req.WebDuration,
		"inactivity_timeout": req.InactivityTimeout,
	} {
		if v != nil && *v <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: name + " must be positive"})
			return
		}
	}
	for name, v := range map[string]*string{
		"schedule_start": req.ScheduleStart,
		"schedule_end":   req.ScheduleEnd,
	} {
		if v == nil {
			continue
		}
		if _, err := time.Parse(scheduleLayout, *v); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid %s format: need 23:15, got %s", name, *v)})
			return
		}
	}

	// the password is hashed up front so it lands in the same write as the other fields
	var passwordHash *string
	if req.MasterPassword != nil {
		hash, err := ws.settings.HashMasterPassword(*req.MasterPassword)
		if err != nil {
			abortWithError(c, err)
			return
		}
		passwordHash = &hash
	}

	err := ws.settings.Update(func(st *settings.Settings) {
		if passwordHash != nil {
			st.MasterPasswordHash = passwordHash
		}
		setIf(&st.AutoStartDemo, req.AutoStartDemo)
		setIf(&st.PhotoDuration, req.PhotoDuration)
		setIf(&st.VideoDuration, req.VideoDuration)
		setIf(&st.AppDuration, req.AppDuration)
		setIf(&st.WebDuration, req.WebDuration)
		setIf(&st.InactivityTimeout, req.InactivityTimeout)
		setIf(&st.KeyboardLockEnabled, req.KeyboardLockEnabled)
		setIf(&st.MouseLockEnabled, req.MouseLockEnabled)
		setIf(&st.KeepPlayingOnActivity, req.KeepPlayingOnActivity)
		setIf(&st.ScheduleEnabled, req.ScheduleEnabled)
		setIf(&st.ScheduleStart, req.ScheduleStart)
		setIf(&st.ScheduleEnd, req.ScheduleEnd)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update settings: %v", err)})
		return
	}

	c.JSON(http.StatusOK, settingsResponse(ws.settings.Settings()))
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (ws *WebServer) handleHistory(c *gin.Context) {
	if ws.db == nil {
		c.JSON(http.StatusOK, models.HistoryResponse{})
		return
	}

	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid limit parameter"})
			return
		}
		limit = n
	}

	plays, err := ws.db.RecentPlays(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	counts, err := ws.db.PlayCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}
	attempts, err := ws.db.RecentExitAttempts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Database error: %v", err)})
		return
	}

	c.JSON(http.StatusOK, models.HistoryResponse{Plays: plays, Counts: counts, ExitAttempts: attempts})
}

func (ws *WebServer) handleGetDisplay(c *gin.Context) {
	if ws.display == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "No display output configured"})
		return
	}

	enabled, err := ws.display.Enabled()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to get display state: %v", err)})
		return
	}

	c.JSON(http.StatusOK, models.DisplayStateResponse{Enabled: enabled})
}

func (ws *WebServer) handleUpdateDisplay(c *gin.Context) {
	if ws.display == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "No display output configured"})
		return
	}

	state := c.Param("state")
	if state != "0" && state != "1" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "state must be 0 (off) or 1 (on)"})
		return
	}

	desiredEnabled := state == "1"
	if err := ws.display.SetEnabled(desiredEnabled); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update display state: %v", err)})
		return
	}

	// Re-read state to reflect actual output if possible.
	enabled, err := ws.display.Enabled()
	if err != nil {
		slog.Warn("failed to re-read display state after update", "error", err)
		enabled = desiredEnabled
	}

	c.JSON(http.StatusOK, models.DisplayStateResponse{Enabled: enabled})
}
