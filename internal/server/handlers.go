package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"hemocheck/internal/anemia"
	"hemocheck/internal/pipeline"
	"hemocheck/internal/records"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID int64 `json:"user_id"`
}

type savePredictionRequest struct {
	UserID      any    `json:"user_id"`
	Hemoglobin  any    `json:"hemoglobin"`
	AnemiaClass string `json:"anemia_class"`
}

type saveResponse struct {
	Message  string `json:"message"`
	RecordID int64  `json:"record_id"`
}

// HistoryEntry is one row of GET /history/{userId}.
type HistoryEntry struct {
	ID          int64        `json:"id"`
	Hemoglobin  float64      `json:"hemoglobin"`
	AnemiaClass anemia.Class `json:"anemia_class"`
	TestDate    string       `json:"test_date"`
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Version         string    `json:"version"`
	Algorithm       string    `json:"algorithm"`
	TrainedAt       time.Time `json:"trained_at"`
	Features        []string  `json:"features"`
	TrainingRows    int       `json:"training_rows"`
	ValidationRMSE  float64   `json:"validation_rmse"`
	ValidationR2    float64   `json:"validation_r2"`
	ArtifactDir     string    `json:"artifact_dir"`
	LoadedAt        time.Time `json:"loaded_at"`
	ModelAgeSeconds float64   `json:"model_age_seconds"`
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := ReadJSON(r, &raw, s.cfg.MaxBodyBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if raw == nil {
		WriteError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.pipeline.Run(ctx, raw)
	if err != nil {
		status, msg := predictErrorStatus(err)
		if status >= http.StatusInternalServerError {
			zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("prediction request failed")
		}
		WriteError(w, status, msg)
		return
	}

	WriteJSON(w, http.StatusOK, res)
}

func predictErrorStatus(err error) (int, string) {
	var ie *pipeline.InferenceError
	switch {
	case pipeline.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pipeline.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model unavailable"
	case errors.As(err, &ie):
		return http.StatusInternalServerError, "prediction failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "prediction timed out"
	default:
		return http.StatusInternalServerError, "prediction failed"
	}
}

func (s *Server) handleSavePrediction(w http.ResponseWriter, r *http.Request) {
	var req savePredictionRequest
	if err := ReadJSON(r, &req, s.cfg.MaxBodyBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == nil || req.Hemoglobin == nil || strings.TrimSpace(req.AnemiaClass) == "" {
		WriteError(w, http.StatusBadRequest, "user_id, hemoglobin and anemia_class are required")
		return
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	hb, err := parseNumber(req.Hemoglobin)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid hemoglobin")
		return
	}
	class, err := anemia.ParseClass(req.AnemiaClass)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	id, err := s.store.Append(ctx, userID, hb, class)
	switch {
	case errors.Is(err, records.ErrUserNotFound):
		s.metrics.LedgerWriteInc("unknown_user")
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("User with user_id %d does not exist", userID))
		return
	case err != nil:
		s.metrics.LedgerWriteInc("error")
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("failed to save prediction")
		WriteError(w, http.StatusInternalServerError, "failed to save prediction")
		return
	}

	s.metrics.LedgerWriteInc("ok")
	WriteJSON(w, http.StatusOK, saveResponse{Message: "Prediction saved successfully!", RecordID: id})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["userId"]
	if !isDigits(raw) {
		WriteError(w, http.StatusBadRequest, "Invalid userId")
		return
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid userId")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	recs, err := s.store.List(ctx, userID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("failed to load history")
		WriteError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if len(recs) == 0 {
		WriteError(w, http.StatusNotFound, "No history found")
		return
	}

	out := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, HistoryEntry{
			ID:          rec.ID,
			Hemoglobin:  rec.HemoglobinLevel,
			AnemiaClass: rec.Result,
			TestDate:    rec.TestDate.Format(records.DateLayout),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := ReadJSON(r, &req, s.cfg.MaxBodyBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	id, err := s.store.Create(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, records.ErrMissingCredentials), errors.Is(err, records.ErrPasswordTooLong):
		s.metrics.AuthAttemptInc("signup", "invalid")
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrEmailTaken):
		s.metrics.AuthAttemptInc("signup", "conflict")
		WriteError(w, http.StatusConflict, "Email already registered")
	case err != nil:
		s.metrics.AuthAttemptInc("signup", "error")
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("signup failed")
		WriteError(w, http.StatusInternalServerError, "Server error")
	default:
		s.metrics.AuthAttemptInc("signup", "ok")
		WriteJSON(w, http.StatusCreated, userResponse{UserID: id})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := ReadJSON(r, &req, s.cfg.MaxBodyBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	id, err := s.store.Verify(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, records.ErrMissingCredentials):
		s.metrics.AuthAttemptInc("login", "invalid")
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrUserNotFound):
		s.metrics.AuthAttemptInc("login", "unknown_user")
		WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, records.ErrInvalidCredentials):
		s.metrics.AuthAttemptInc("login", "rejected")
		WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	case err != nil:
		s.metrics.AuthAttemptInc("login", "error")
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("login failed")
		WriteError(w, http.StatusInternalServerError, "Server error")
	default:
		s.metrics.AuthAttemptInc("login", "ok")
		WriteJSON(w, http.StatusOK, userResponse{UserID: id})
	}
}

// HandleHealth reports pipeline health. It answers 503 while no model is
// loaded.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.pipeline.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	models := s.pipeline.Models()
	md := models.Metadata()
	if !models.Available() || md == nil {
		WriteError(w, http.StatusServiceUnavailable, "model unavailable")
		return
	}

	WriteJSON(w, http.StatusOK, ModelInfo{
		Version:         md.Version,
		Algorithm:       md.Algorithm,
		TrainedAt:       md.TrainedAt,
		Features:        md.Features,
		TrainingRows:    md.TrainingRows,
		ValidationRMSE:  md.ValidationRMSE,
		ValidationR2:    md.ValidationR2,
		ArtifactDir:     models.Dir(),
		LoadedAt:        models.LoadedAt(),
		ModelAgeSeconds: models.Age().Seconds(),
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseUserID accepts a JSON integer or a string of digits.
func parseUserID(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return strconv.ParseInt(t.String(), 10, 64)
	case string:
		t = strings.TrimSpace(t)
		if !isDigits(t) {
			return 0, fmt.Errorf("invalid user id %q", t)
		}
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("invalid user id type %T", v)
	}
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("invalid number type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number")
	}
	return f, nil
}
