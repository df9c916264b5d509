package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"studyforest/internal/emoji"
	"studyforest/internal/model"
)

type EmojiHandler struct {
	Svc *emoji.Service
}

// Clients send the token as a string, but numeric tokens arrive as JSON
// numbers, so the raw value is kept and stringified.
type createEmojiReq struct {
	StudyID string          `json:"studyId" validate:"required,uuid"`
	Emoji   json.RawMessage `json:"emoji" validate:"required"`
}

type reactReq struct {
	StudyID string          `json:"studyId" validate:"required,uuid"`
	Emoji   json.RawMessage `json:"emoji" validate:"required"`
	Action  string          `json:"action" validate:"required"`
}

type updateEmojiReq struct {
	Emoji json.RawMessage `json:"emoji"`
	Count *int64          `json:"count"`
}

func tokenString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", model.Invalid("emoji", "required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", model.Invalid("emoji", "bad string")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", model.Invalid("emoji", "must be a string or a number")
	}
	return n.String(), nil
}

func (h *EmojiHandler) List(w http.ResponseWriter, r *http.Request) {
	studyID, err := queryID(r, "studyId")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	list, err := h.Svc.List(r.Context(), studyID, active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEmojiDTOs(list))
}

func (h *EmojiHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEmojiReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	tok, err := tokenString(req.Emoji)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	e, err := h.Svc.Create(r.Context(), req.StudyID, tok)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEmojiDTO(e))
}

func (h *EmojiHandler) React(w http.ResponseWriter, r *http.Request) {
	e, ok := h.react(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, toEmojiDTO(e))
}

// Add reacts and answers with the study's active counters.
func (h *EmojiHandler) Add(w http.ResponseWriter, r *http.Request) {
	e, ok := h.react(w, r)
	if !ok {
		return
	}
	list, err := h.Svc.List(r.Context(), e.StudyID, true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEmojiDTOs(list))
}

func (h *EmojiHandler) react(w http.ResponseWriter, r *http.Request) (model.Emoji, bool) {
	var req reactReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return model.Emoji{}, false
	}
	tok, err := tokenString(req.Emoji)
	if err != nil {
		writeServiceError(w, r, err)
		return model.Emoji{}, false
	}
	action, err := emoji.ParseAction(req.Action)
	if err != nil {
		writeServiceError(w, r, err)
		return model.Emoji{}, false
	}

	e, err := h.Svc.React(r.Context(), req.StudyID, tok, action)
	if err != nil {
		writeServiceError(w, r, err)
		return model.Emoji{}, false
	}
	return e, true
}

func (h *EmojiHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	e, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEmojiDTO(e))
}

func (h *EmojiHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req updateEmojiReq
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	in := emoji.UpdateInput{Count: req.Count}
	if len(req.Emoji) > 0 {
		tok, err := tokenString(req.Emoji)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		in.Emoji = &tok
	}

	e, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEmojiDTO(e))
}

func (h *EmojiHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
