package handler

import (
	"net/http"
	"strconv"

	"code_duel/internal/api/middleware"
	"code_duel/internal/app/service"
	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// DuelHandler is the HTTP twin of the socket operations. Verdicts still arrive
// on the player's socket channels; these endpoints only accept the work.
type DuelHandler struct {
	duelService *service.DuelService
}

func NewDuelHandler(ds *service.DuelService) *DuelHandler {
	return &DuelHandler{duelService: ds}
}

func (h *DuelHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // every duel route needs a player
	r.Post("/queue/join", h.joinQueue)
	r.Post("/queue/leave", h.leaveQueue)
	r.Get("/queue", h.queueStatus)
	r.Get("/matches/history", h.history)
	r.Get("/matches/{matchID}", h.getMatch)
	r.Get("/matches/{matchID}/submissions", h.submissions)
	r.Post("/matches/{matchID}/run", h.runCode)
	r.Post("/matches/{matchID}/submit", h.submitCode)
}

type JoinQueueRequest struct {
	Difficulty string `json:"difficulty"`
}

type CodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type QueueStatusResponse struct {
	Queued     bool             `json:"queued"`
	Difficulty model.Difficulty `json:"difficulty,omitempty"`
}

func (h *DuelHandler) joinQueue(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	var req JoinQueueRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.RespondWithDomainError(w, err)
			return
		}
	}
	if err := h.duelService.JoinQueue(r.Context(), userID, req.Difficulty); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	h.queueStatus(w, r)
}

func (h *DuelHandler) leaveQueue(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.duelService.LeaveQueue(r.Context(), userID); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DuelHandler) queueStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	d, ok := h.duelService.QueuePosition(userID)
	common.RespondWithJSON(w, http.StatusOK, QueueStatusResponse{Queued: ok, Difficulty: d})
}

func (h *DuelHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.duelService.MatchHistory(r.Context(), userID, limit)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, history)
}

func (h *DuelHandler) getMatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	match, err := h.duelService.GetMatch(r.Context(), userID, chi.URLParam(r, "matchID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, match)
}

func (h *DuelHandler) submissions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	subs, err := h.duelService.Submissions(r.Context(), userID, chi.URLParam(r, "matchID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *DuelHandler) runCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	var req CodeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	matchID := chi.URLParam(r, "matchID")
	if err := h.duelService.RunCode(r.Context(), userID, matchID, req.Code, req.Language); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"match_id": matchID}) // Accepted (202) as it's async
}

func (h *DuelHandler) submitCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	var req CodeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	sub, err := h.duelService.SubmitCode(r.Context(), userID, chi.URLParam(r, "matchID"), req.Code, req.Language)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, sub)
}
