package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/neurotune/internal/control"
	"github.com/desertthunder/neurotune/internal/models"
	"github.com/desertthunder/neurotune/internal/shared"
)

// Controller is the control surface exposed over HTTP. [control.Loop] implements it.
type Controller interface {
	Snapshotter
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	TogglePlayback(ctx context.Context) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	SelectMood(m models.Mood) error
	SetMode(m control.Mode)
	ToggleMode()
	EnableGestures()
	DisableGestures()
	Motion(s models.MotionSample)
}

const maxBodyBytes = 1 << 16

// API serves the JSON control routes.
type API struct {
	ctl    Controller
	logger *log.Logger
}

func NewAPI(ctl Controller, logger *log.Logger) *API {
	return &API{ctl: ctl, logger: logger}
}

// Register adds every route to router.
func (a *API) Register(router Router) {
	router.Handle(http.MethodGet, "/api/state", http.HandlerFunc(a.state))
	router.Handle(http.MethodPost, "/api/login", a.action(a.ctl.Login))
	router.Handle(http.MethodPost, "/api/logout", a.action(a.ctl.Logout))
	router.Handle(http.MethodPost, "/api/playback/toggle", a.action(a.ctl.TogglePlayback))
	router.Handle(http.MethodPost, "/api/playback/next", a.action(a.ctl.SkipToNext))
	router.Handle(http.MethodPost, "/api/playback/previous", a.action(a.ctl.SkipToPrevious))
	router.Handle(http.MethodPost, "/api/mood", http.HandlerFunc(a.mood))
	router.Handle(http.MethodPost, "/api/mode", http.HandlerFunc(a.mode))
	router.Handle(http.MethodPost, "/api/mode/toggle", a.sync(a.ctl.ToggleMode))
	router.Handle(http.MethodPost, "/api/gestures/enable", a.sync(a.ctl.EnableGestures))
	router.Handle(http.MethodPost, "/api/gestures/disable", a.sync(a.ctl.DisableGestures))
	router.Handle(http.MethodPost, "/api/motion", http.HandlerFunc(a.motion))
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case shared.IsAuthKind(err):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusBadGateway
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	if k := shared.KindOf(err); k != shared.KindUnknown {
		body.Kind = k.String()
	}
	writeJSON(w, statusFor(err), body)
}

func (a *API) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ctl.Snapshot())
}

// action adapts a blocking operation; the response carries the resulting state.
func (a *API) action(fn func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			a.logger.Warn("api action failed", "path", r.URL.Path, "error", err)
			a.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a.ctl.Snapshot())
	})
}

func (a *API) sync(fn func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, a.ctl.Snapshot())
	})
}

func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func (a *API) mood(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood string `json:"mood"`
	}
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	m, err := models.ParseMood(req.Mood)
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}
	if err := a.ctl.SelectMood(m); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.ctl.Snapshot())
}

func (a *API) mode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	m, err := control.ParseMode(req.Mode)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.ctl.SetMode(m)
	writeJSON(w, http.StatusOK, a.ctl.Snapshot())
}

func (a *API) motion(w http.ResponseWriter, r *http.Request) {
	var s models.MotionSample
	if err := decode(r, &s); err != nil {
		a.fail(w, err)
		return
	}
	a.ctl.Motion(s)
	w.WriteHeader(http.StatusNoContent)
}
