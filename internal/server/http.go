package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/sidebet"
)

// playerHeader identifies the requesting player on every round endpoint.
const playerHeader = "X-Player-ID"

// Server is the JSON HTTP front end over the round service.
type Server struct {
	service *RoundService
	logger  *log.Logger
	httpSrv *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, service *RoundService, logger *log.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger.WithPrefix("http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /rounds", s.handleCreateRound)
	mux.HandleFunc("GET /rounds/{id}", s.handleGetRound)
	mux.HandleFunc("POST /rounds/{id}/scores", s.handleRecordScore)
	mux.HandleFunc("POST /rounds/{id}/pars", s.handleSetPar)
	mux.HandleFunc("GET /rounds/{id}/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /rounds/{id}/skins", s.handleSkins)
	mux.HandleFunc("POST /rounds/{id}/complete", s.handleComplete)
	mux.HandleFunc("GET /rounds/{id}/results", s.handleResults)
	mux.HandleFunc("GET /rounds/{id}/side-bets", s.handleListSideBets)
	mux.HandleFunc("POST /rounds/{id}/side-bets", s.handleCreateSideBet)
	mux.HandleFunc("GET /rounds/{id}/side-bets/suggestions", s.handleSuggestions)
	mux.HandleFunc("POST /rounds/{id}/side-bets/{betID}/cancel", s.handleCancelSideBet)
	mux.HandleFunc("POST /rounds/{id}/side-bets/{betID}/settle", s.handleSettleSideBet)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start runs the server until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requesterID(r *http.Request) string {
	return r.Header.Get(playerHeader)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.Forbidden:
		status = http.StatusForbidden
	case errs.InvalidState:
		status = http.StatusConflict
	case errs.PartialFailure:
		status = http.StatusMultiStatus
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, errs.Wrap(errs.Validation, "invalid request body", err))
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	var params CreateRoundParams
	if !s.decode(w, r, &params) {
		return
	}
	params.CreatedBy = requesterID(r)
	if params.CreatedBy == "" {
		s.writeError(w, errs.New(errs.Validation, "requester id is required"))
		return
	}
	view, err := s.service.CreateRound(r.Context(), params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetRound(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRecordScore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlayerID string `json:"player_id"`
		Hole     int    `json:"hole"`
		Strokes  int    `json:"strokes"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	err := s.service.RecordScore(r.Context(), r.PathValue("id"), requesterID(r),
		body.PlayerID, body.Hole, body.Strokes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Hole int `json:"hole"`
		Par  int `json:"par"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	err := s.service.SetPar(r.Context(), r.PathValue("id"), requesterID(r), body.Hole, body.Par)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.GetLeaderboard(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSkins(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.CalculateSkins(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.CompleteRound(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.CompletionResult(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSideBets(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListSideBets(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSideBet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string           `json:"name"`
		Description  string           `json:"description"`
		Category     sidebet.Category `json:"category"`
		Stake        int              `json:"stake"`
		Participants []string         `json:"participants"`
		HoleStart    int              `json:"hole_start"`
		HoleEnd      int              `json:"hole_end"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	bet, err := s.service.CreateSideBet(r.Context(), r.PathValue("id"), requesterID(r), sidebet.CreateParams{
		Name:         body.Name,
		Description:  body.Description,
		Category:     body.Category,
		Stake:        body.Stake,
		Participants: body.Participants,
		HoleStart:    body.HoleStart,
		HoleEnd:      body.HoleEnd,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, bet)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.service.SuggestSideBets(r.Context(), r.PathValue("id"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleCancelSideBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.service.CancelSideBet(r.Context(), r.PathValue("id"), r.PathValue("betID"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bet)
}

func (s *Server) handleSettleSideBet(w http.ResponseWriter, r *http.Request) {
	settlement, err := s.service.SettleSideBet(r.Context(), r.PathValue("id"), r.PathValue("betID"), requesterID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settlement)
}
