package handler

import (
	"net/http"

	"studyforest/internal/user"
)

type UserHandler struct {
	Svc *user.Service
}

type createUserReq struct {
	Username string `json:"username" validate:"required,max=50"`
	Points   int64  `json:"points" validate:"min=0"`
}

type setPointsReq struct {
	Points *int64 `json:"points" validate:"required,min=0"`
}

type addPointsReq struct {
	Points int64 `json:"points"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]userDTO, 0, len(list))
	for _, u := range list {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.Svc.Create(r.Context(), req.Username, req.Points)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toUserDTO(u))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toUserDTO(u))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) SetPoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req setPointsReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.Svc.SetPoints(r.Context(), id, *req.Points)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toUserDTO(u))
}

func (h *UserHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req addPointsReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	u, err := h.Svc.AddPoints(r.Context(), id, req.Points)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toUserDTO(u))
}
