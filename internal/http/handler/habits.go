package handler

import (
	"net/http"

	"studyforest/internal/habit"
)

type HabitHandler struct {
	Svc *habit.Service
}

type createHabitReq struct {
	StudyID string `json:"studyId" validate:"required,uuid"`
	Title   string `json:"title" validate:"required,max=100"`
}

type updateHabitReq struct {
	Title *string `json:"title" validate:"omitempty,max=100"`
}

type toggleReq struct {
	Day string `json:"day" validate:"required"`
}

type todayReq struct {
	StudyID  string `json:"studyId" validate:"required,uuid"`
	Password string `json:"password" validate:"required"`
}

// Habits is the older field name for Titles.
type replaceHabitsReq struct {
	Titles []string `json:"titles" validate:"max=50,dive,max=100"`
	Habits []string `json:"habits" validate:"max=50,dive,max=100"`
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	studyID, err := queryID(r, "studyId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	includeClosed, err := queryBool(r, "includeClosed")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	list, err := h.Svc.List(r.Context(), habit.ListFilter{StudyID: studyID, IncludeClosed: includeClosed})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHabitDTOs(list))
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHabitReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	hb, err := h.Svc.Create(r.Context(), req.StudyID, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toHabitDTO(hb))
}

func (h *HabitHandler) Today(w http.ResponseWriter, r *http.Request) {
	var req todayReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	list, err := h.Svc.Today(r.Context(), req.StudyID, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"habits": toHabitDTOs(list)})
}

func (h *HabitHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathID(r, "studyId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req replaceHabitsReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	titles := req.Titles
	if titles == nil {
		titles = req.Habits
	}
	list, err := h.Svc.ReplaceAll(r.Context(), studyID, titles)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHabitDTOs(list))
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	hb, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHabitDTO(hb))
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req updateHabitReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	hb, err := h.Svc.Update(r.Context(), id, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHabitDTO(hb))
}

func (h *HabitHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req toggleReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	hb, err := h.Svc.Toggle(r.Context(), id, req.Day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHabitDTO(hb))
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.Svc.Remove(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
