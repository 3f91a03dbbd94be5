package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"wynn-tracker/internal/api"
	"wynn-tracker/internal/domain"
	"wynn-tracker/internal/repository"
	"wynn-tracker/internal/service"

	"github.com/rs/zerolog"
)

// Server is the JSON API over the registry and the stats history.
type Server struct {
	characterSvc *service.CharacterService
	tracker      *service.Tracker
	players      *repository.PlayerRepository
	characters   *repository.CharacterRepository
	stats        *repository.StatsRepository
	logger       zerolog.Logger
}

func New(
	characterSvc *service.CharacterService,
	tracker *service.Tracker,
	players *repository.PlayerRepository,
	characters *repository.CharacterRepository,
	stats *repository.StatsRepository,
	logger zerolog.Logger,
) *Server {
	return &Server{
		characterSvc: characterSvc,
		tracker:      tracker,
		players:      players,
		characters:   characters,
		stats:        stats,
		logger:       logger,
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/players", s.handleListPlayers)
	mux.HandleFunc("GET /api/players/{uuid}", s.handleGetPlayer)
	mux.HandleFunc("GET /api/characters", s.handleListCharacters)
	mux.HandleFunc("POST /api/characters", s.handleAddCharacter)
	mux.HandleFunc("GET /api/characters/{uuid}", s.handleGetCharacter)
	mux.HandleFunc("DELETE /api/characters/{uuid}", s.handleDeleteCharacter)
	mux.HandleFunc("GET /api/stats/{uuid}", s.handleCurrentStats)
	mux.HandleFunc("GET /api/stats/{uuid}/history", s.handleStatsHistory)
	mux.HandleFunc("POST /api/stats/fetch", s.handleFetchAll)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.players.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]playerResponse, 0, len(players))
	for _, p := range players {
		resp = append(resp, toPlayerResponse(p, nil))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	player, err := s.players.Get(r.Context(), uuid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	characters, err := s.characters.ListByPlayer(r.Context(), uuid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPlayerResponse(*player, characters))
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := s.characterSvc.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]characterResponse, 0, len(characters))
	for _, c := range characters {
		resp = append(resp, toCharacterResponse(c))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type addCharacterRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleAddCharacter(w http.ResponseWriter, r *http.Request) {
	var req addCharacterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be {\"url\": ...}"})
		return
	}

	character, err := s.characterSvc.Register(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toCharacterResponse(*character))
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	detail, err := s.characterSvc.Get(r.Context(), r.PathValue("uuid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := characterDetailResponse{
		characterResponse: toCharacterResponse(detail.Character),
		IsRecentlyActive:  detail.RecentlyActive,
	}
	if detail.CurrentStats != nil {
		stats := toStatsResponse(*detail.CurrentStats)
		resp.CurrentStats = &stats
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCharacter(w http.ResponseWriter, r *http.Request) {
	if err := s.characterSvc.Delete(r.Context(), r.PathValue("uuid")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "character deleted"})
}

func (s *Server) handleCurrentStats(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	if _, err := s.characters.Get(r.Context(), uuid); err != nil {
		s.writeError(w, r, err)
		return
	}

	latest, err := s.stats.Latest(r.Context(), uuid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if latest == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no stats recorded yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, toStatsResponse(*latest))
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")

	if _, err := s.characters.Get(r.Context(), uuid); err != nil {
		s.writeError(w, r, err)
		return
	}

	from, err := parseTimeParam(r, "from")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from must be RFC 3339"})
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "to must be RFC 3339"})
		return
	}

	history, err := s.stats.History(r.Context(), uuid, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]statsResponse, 0, len(history))
	for _, v := range history {
		resp = append(resp, toStatsResponse(v))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	s.tracker.FetchAll(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "fetch completed"})
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrCharacterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCharacterExists):
		status = http.StatusConflict
	case errors.Is(err, api.ErrInvalidTrackerURL):
		status = http.StatusBadRequest
	case errors.Is(err, api.ErrUnreachable),
		errors.Is(err, api.ErrNotFound),
		errors.Is(err, api.ErrMalformed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
