package handler

import (
	"net/http"

	"studyforest/internal/ledger"
)

type TimerHandler struct {
	Ledger *ledger.Service
}

type createTimerReq struct {
	StudyID  string  `json:"studyId" validate:"required,uuid"`
	UserID   *string `json:"userId" validate:"omitempty,uuid"`
	Duration *int64  `json:"duration" validate:"required,min=0"`
}

type updateTimerReq struct {
	Duration *int64 `json:"duration" validate:"required,min=0"`
}

func (h *TimerHandler) List(w http.ResponseWriter, r *http.Request) {
	studyID, err := queryID(r, "studyId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	userID, err := queryID(r, "userId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	list, err := h.Ledger.ListSessions(r.Context(), ledger.ListFilter{StudyID: studyID, UserID: userID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]timerDTO, 0, len(list))
	for _, t := range list {
		out = append(out, toTimerDTO(t))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *TimerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTimerReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	t, err := h.Ledger.CreateSession(r.Context(), ledger.CreateSessionInput{
		StudyID:  req.StudyID,
		UserID:   req.UserID,
		Duration: *req.Duration,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toTimerDTO(t))
}

func (h *TimerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	t, err := h.Ledger.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTimerDTO(t))
}

func (h *TimerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req updateTimerReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	t, err := h.Ledger.UpdateSession(r.Context(), id, *req.Duration)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTimerDTO(t))
}

func (h *TimerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.Ledger.DeleteSession(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TimerHandler) StudyStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "studyId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.stats(w, r, ledger.ListFilter{StudyID: id})
}

func (h *TimerHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.stats(w, r, ledger.ListFilter{UserID: id})
}

func (h *TimerHandler) stats(w http.ResponseWriter, r *http.Request, f ledger.ListFilter) {
	st, err := h.Ledger.Stats(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statsDTO{
		TotalDuration: st.TotalDuration,
		TotalSessions: st.TotalSessions,
		TotalPoints:   st.TotalPoints,
	})
}
