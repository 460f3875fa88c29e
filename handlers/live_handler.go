package handlers

import (
	"errors"
	"net/http"

	"github.com/avoronkov/fieldside/live"
)

// LiveHandler exposes the admin control surface and the viewer snapshot for
// live match tracking. Every mutation goes through the LiveMatchController.
type LiveHandler struct {
	controller *live.LiveMatchController
}

func NewLiveHandler(controller *live.LiveMatchController) *LiveHandler {
	return &LiveHandler{controller: controller}
}

// Snapshot returns the full current MatchState, consumed on viewer page
// load and on late websocket joins.
func (h *LiveHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.controller.Snapshot(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LiveHandler) Start(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.controller.StartMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LiveHandler) Pause(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.controller.PauseMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LiveHandler) Resume(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.controller.ResumeMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LiveHandler) End(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.controller.EndMatch(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LiveHandler) UpdatePlayerStat(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := urlParamInt(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var fields live.PlayerStatFields
	if err := readJSON(w, r, &fields); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stat, err := h.controller.UpdatePlayerStat(r.Context(), matchID, playerID, fields)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"stat": stat}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type scoreUpdateRequest struct {
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// UpdateScore sets the score. When the in-memory update succeeded but the
// durable write failed, the new score is still returned together with a
// warning; the live view keeps working from memory.
func (h *LiveHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req scoreUpdateRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.controller.UpdateScore(r.Context(), matchID, req.HomeScore, req.AwayScore)
	if err != nil {
		if errors.Is(err, live.ErrScoreNotPersisted) {
			writeJSON(w, http.StatusOK, jsonResponse{"score": score, "warning": err.Error()}, nil)
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
