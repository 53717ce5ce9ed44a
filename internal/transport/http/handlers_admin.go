package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kedh/regcore/internal/label"
	"github.com/kedh/regcore/pkg/errs"
)

func (h *Handler) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	root, err := h.checkpointer.WriteCheckpoint(r.Context(), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkpointTime": root.CheckpointTime,
		"bucketTimes":    root.BucketTimes,
	})
}

func (h *Handler) handleKillAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.killer.KillAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

type saveLabelsRequest struct {
	Kind  string   `json:"kind"`
	Lines []string `json:"lines"`
}

func (h *Handler) handleSaveLabels(w http.ResponseWriter, r *http.Request) {
	var req saveLabelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, errs.New(errs.CodeMissingParameter, "request body must be valid JSON"))
		return
	}
	list, err := h.labels.Save(r.Context(), chi.URLParam(r, "name"), label.Kind(req.Kind), req.Lines, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    list.Name,
		"kind":    list.Kind,
		"entries": len(list.Entries),
	})
}

func (h *Handler) handleDeleteLabels(w http.ResponseWriter, r *http.Request) {
	if err := h.labels.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
