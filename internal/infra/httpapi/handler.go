// Package httpapi exposes the reminder core to the web client and to external schedulers.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"medication_reminder_bot/internal/app"
	"medication_reminder_bot/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatcher sends the dismissal SMS for a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, medicineName, dosage string) (app.FanoutResult, error)
}

// Sessions looks up a user's running reminder session.
type Sessions interface {
	Get(userID uuid.UUID) (*app.Session, error)
}

type Handler struct {
	instant  Dispatcher
	sweeper  app.Sweeper
	sessions Sessions
	apiToken string
	validate *validator.Validate
	now      func() time.Time
	logger   *logrus.Entry
}

// NewHandler builds the API. An empty apiToken leaves the /api routes open.
func NewHandler(instant Dispatcher, sweeper app.Sweeper, sessions Sessions, apiToken string, logger *logrus.Entry) *Handler {
	return &Handler{
		instant:  instant,
		sweeper:  sweeper,
		sessions: sessions,
		apiToken: apiToken,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger.WithField("component", "httpapi"),
	}
}

// Routes returns the full router including health and metrics.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Post("/send-instant-sms", h.SendInstantSMS)
		r.Post("/sms-scheduler", h.RunSweep)
		r.Route("/users/{userID}/reminder", func(r chi.Router) {
			r.Get("/", h.GetActiveReminder)
			r.Post("/{action}", h.HandleAction)
		})
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type instantSMSRequest struct {
	UserID       string `json:"userId" validate:"required,uuid"`
	MedicineName string `json:"medicineName" validate:"required,max=200"`
	Dosage       string `json:"dosage" validate:"required,max=100"`
}

type smsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

// SendInstantSMS alerts family contacts that the user dismissed a reminder.
func (h *Handler) SendInstantSMS(w http.ResponseWriter, r *http.Request) {
	var req instantSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	userID := uuid.MustParse(req.UserID)
	res, err := h.instant.Dispatch(r.Context(), userID, req.MedicineName, req.Dosage)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Instant SMS request failed")
		writeError(w, http.StatusInternalServerError, "failed to send family SMS")
		return
	}

	writeJSON(w, http.StatusOK, smsResponse{
		Success: true,
		Message: "Family notification processed",
		Sent:    res.Sent,
		Failed:  res.Failed,
	})
}

type sweepResponse struct {
	Success    bool `json:"success"`
	Users      int  `json:"users"`
	Breaches   int  `json:"breaches"`
	Suppressed int  `json:"suppressed"`
	Sent       int  `json:"sent"`
	Failed     int  `json:"failed"`
	UserErrors int  `json:"userErrors"`
}

// RunSweep runs the missed-dose sweep for callers that schedule it externally.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context(), h.now())
	if err != nil {
		h.logger.WithError(err).Error("Sweep request failed")
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		Success:    true,
		Users:      report.Users,
		Breaches:   report.Breaches,
		Suppressed: report.Suppressed,
		Sent:       report.Sent,
		Failed:     report.Failed,
		UserErrors: report.UserErrors,
	})
}

type reminderView struct {
	ScheduleID    uuid.UUID `json:"scheduleId"`
	MedicineName  string    `json:"medicineName"`
	Dosage        string    `json:"dosage"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Phase         app.Phase `json:"phase"`
	Announcements int       `json:"announcements"`
}

type activeResponse struct {
	Active *reminderView `json:"active"`
}

// GetActiveReminder returns the session's active reminder, or null.
func (h *Handler) GetActiveReminder(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	resp := activeResponse{}
	if a, found := session.ActiveReminder(); found {
		resp.Active = &reminderView{
			ScheduleID:    a.Item.ID,
			MedicineName:  a.Item.MedicineName,
			Dosage:        a.Item.Dosage,
			ScheduledTime: a.Item.ScheduledTime,
			Phase:         a.Phase,
			Announcements: a.Announcements,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type actionRequest struct {
	ScheduleID string `json:"scheduleId" validate:"omitempty,uuid"`
}

// HandleAction applies take, snooze or dismiss to the active reminder.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req actionRequest
	// The body is optional; without it the command applies to whatever is active.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	target := uuid.Nil
	if req.ScheduleID != "" {
		target = uuid.MustParse(req.ScheduleID)
	}

	cmd, err := app.ParseCommand(chi.URLParam(r, "action"), target)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	switch err := session.Handle(r.Context(), cmd); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": cmd.Name()})
	case errors.Is(err, app.ErrNoActiveReminder), errors.Is(err, app.ErrStaleReminder):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).WithField("action", cmd.Name()).Error("Reminder action failed")
		writeError(w, http.StatusInternalServerError, "action failed")
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return nil, false
	}
	s, err := h.sessions.Get(userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no reminder session for user")
		return nil, false
	}
	return s, true
}
