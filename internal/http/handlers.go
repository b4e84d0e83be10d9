package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"trueshuffle/internal/core"
	"trueshuffle/internal/queue"
)

const (
	headerRefreshToken = "X-Refresh-Token"
	headerTokenExpiry  = "X-Token-Expiry"

	maxBodyBytes = 64 << 10
)

var (
	errBadRequest  = errors.New("bad request")
	errRateLimited = errors.New("too many submissions, try again in a minute")
)

type shuffleSubmitResponse struct {
	TaskID string `json:"shuffle_task_id"`
}

type likedSubmitResponse struct {
	TaskID string `json:"create_liked_playlist_id"`
}

type taskStateResponse struct {
	Task     string               `json:"task"`
	State    core.TaskState       `json:"state"`
	Progress map[string]string    `json:"progress"`
	Result   *core.PlaylistResult `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
}

type overallStatisticsResponse struct {
	PlaylistCounter string `json:"playlist_counter"`
	TrackCounter    string `json:"track_counter"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleShuffleSubmit(w http.ResponseWriter, r *http.Request) {
	var params core.TaskParams
	if err := decodeBody(r, &params); err != nil {
		s.writeError(w, err)
		return
	}
	params.PlaylistName = s.parser.NormalizeName(params.PlaylistName)
	if params.PlaylistID == "" || params.PlaylistName == "" {
		s.writeError(w, fmt.Errorf("%w: playlist_id and playlist_name are required", errBadRequest))
		return
	}
	id, err := s.parser.ParsePlaylistRef(params.PlaylistID)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	params.PlaylistID = id

	taskID, err := s.submit(r, core.TaskKindShuffle, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, shuffleSubmitResponse{TaskID: taskID})
}

func (s *Server) handleLikedSubmit(w http.ResponseWriter, r *http.Request) {
	var params core.TaskParams
	if err := decodeBody(r, &params); err != nil {
		s.writeError(w, err)
		return
	}
	params.PlaylistID = ""
	params.PlaylistName = s.parser.NormalizeName(params.PlaylistName)

	id, err := s.submit(r, core.TaskKindExport, params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, likedSubmitResponse{TaskID: id})
}

// submit authenticates the caller, applies the rate limit and enqueues the task.
func (s *Server) submit(r *http.Request, kind core.TaskKind, params core.TaskParams) (string, error) {
	auth, err := authFromRequest(r)
	if err != nil {
		return "", err
	}

	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(string(kind), callerKey(auth)) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordRateLimited(kind)
		}
		s.logger.Info("Rate limited submission", zap.String("kind", string(kind)))
		return "", errRateLimited
	}

	return s.deps.Queue.Submit(kind, auth, params)
}

func (s *Server) handleTaskState(kind core.TaskKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.deps.Queue.Poll(r.PathValue("id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		if status.Kind != kind {
			s.writeError(w, queue.ErrTaskNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.taskState(status))
	}
}

func (s *Server) taskState(status core.TaskStatus) taskStateResponse {
	label := "task.shuffle"
	if status.Kind == core.TaskKindExport {
		label = "task.export"
	}

	resp := taskStateResponse{
		Task:     s.deps.Localizer.T(label),
		State:    status.State,
		Progress: map[string]string{"state": status.Message},
	}
	switch status.State {
	case core.StateSuccess:
		resp.Result = status.Result
	case core.StateFailure:
		resp.Error = status.Error
		resp.Progress["state"] = status.Error
	}
	return resp
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	includeStats := false
	if v := r.URL.Query().Get("include_stats"); v != "" {
		includeStats, err = strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: include_stats must be a boolean", errBadRequest))
			return
		}
	}

	listing, err := s.deps.Library.ListPlaylists(r.Context(), auth, includeStats)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleDeleteShuffled(w http.ResponseWriter, r *http.Request) {
	auth, err := authFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.deps.Library.DeleteShuffledPlaylists(r.Context(), auth)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOverallStatistics(w http.ResponseWriter, r *http.Request) {
	counters, err := s.deps.Library.OverallStatistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overallStatisticsResponse{
		PlaylistCounter: strconv.FormatInt(counters.PlaylistShuffles, 10),
		TrackCounter:    strconv.FormatInt(counters.TrackShuffles, 10),
	})
}

// authFromRequest reads the bearer token and the optional refresh headers.
func authFromRequest(r *http.Request) (core.AuthContext, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return core.AuthContext{}, fmt.Errorf("%w: missing bearer token", core.ErrAuthInvalid)
	}

	auth := core.AuthContext{
		AccessToken:  token,
		RefreshToken: r.Header.Get(headerRefreshToken),
		TokenType:    "Bearer",
	}
	if v := r.Header.Get(headerTokenExpiry); v != "" {
		expiry, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return core.AuthContext{}, fmt.Errorf("%w: %s must be an RFC3339 timestamp", errBadRequest, headerTokenExpiry)
		}
		auth.Expiry = expiry
	}
	return auth, nil
}

// callerKey identifies a caller for rate limiting without keeping its token.
func callerKey(auth core.AuthContext) string {
	sum := sha256.Sum256([]byte(auth.AccessToken))
	return hex.EncodeToString(sum[:])
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, queue.ErrInvalidParams),
		errors.Is(err, queue.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrTaskEvicted):
		return http.StatusGone
	case errors.Is(err, core.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
		msg = s.deps.Localizer.T("error.internal")
	} else {
		s.logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
