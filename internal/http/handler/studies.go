package handler

import (
	"net/http"
	"strings"

	"studyforest/internal/auth"
	"studyforest/internal/study"

	"github.com/rs/zerolog/hlog"
)

type StudyHandler struct {
	Svc *study.Service
	JWT *auth.JWT
}

type createStudyReq struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Nickname    string `json:"nickname" validate:"required,max=50"`
	Password    string `json:"password" validate:"required,min=4,max=72"`
	Bg          int    `json:"bg" validate:"min=0"`
}

type updateStudyReq struct {
	Title       *string `json:"title" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Nickname    *string `json:"nickname" validate:"omitempty,max=50"`
	Password    *string `json:"password" validate:"omitempty,min=4,max=72"`
	Bg          *int    `json:"bg" validate:"omitempty,min=0"`
}

type passwordReq struct {
	Password string `json:"password" validate:"required"`
}

type recentReq struct {
	IDs []string `json:"ids" validate:"max=100,dive,uuid"`
}

func (h *StudyHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, err := h.Svc.List(r.Context(), study.ListInput{
		Offset:  offset,
		Limit:   limit,
		Keyword: r.URL.Query().Get("keyword"),
		SortKey: strings.TrimSpace(r.URL.Query().Get("sortKey")),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"items":      toStudyDTOs(page.Items),
		"totalCount": page.TotalCount,
	})
}

func (h *StudyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStudyReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	st, err := h.Svc.Create(r.Context(), study.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Nickname:    req.Nickname,
		Password:    req.Password,
		Bg:          req.Bg,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toStudyDTO(st))
}

func (h *StudyHandler) Themes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, study.Themes())
}

func (h *StudyHandler) Recent(w http.ResponseWriter, r *http.Request) {
	var req recentReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	list, err := h.Svc.Recent(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toStudyDTOs(list))
}

func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	d, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, studyDetailDTO{
		studyDTO: toStudyDTO(d.Study),
		Habits:   toHabitDTOs(d.Habits),
		Emojis:   toEmojiDTOs(d.Emojis),
	})
}

func (h *StudyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req updateStudyReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	st, err := h.Svc.Update(r.Context(), id, study.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Nickname:    req.Nickname,
		Password:    req.Password,
		Bg:          req.Bg,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toStudyDTO(st))
}

func (h *StudyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	hlog.FromRequest(r).Info().Str("study", id).Msg("study deleted")
	w.WriteHeader(http.StatusNoContent)
}

// CheckPassword issues a study access token when the password matches.
func (h *StudyHandler) CheckPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req passwordReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.Svc.CheckPassword(r.Context(), id, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	tok, err := h.JWT.Sign(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"token": tok})
}
