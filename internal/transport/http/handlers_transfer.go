package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/internal/registry/transfer"
	"github.com/kedh/regcore/pkg/errs"
)

type transferRequestBody struct {
	Actor      string `json:"actor"`
	AuthInfo   string `json:"authInfo,omitempty"`
	ClientTrid string `json:"clientTrid,omitempty"`
	ServerTrid string `json:"serverTrid,omitempty"`
	AsRegistry bool   `json:"asRegistry,omitempty"`
}

func decodeTransferBody(r *http.Request) (*transferRequestBody, error) {
	var body transferRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errs.New(errs.CodeMissingParameter, "request body must be valid JSON")
	}
	return &body, nil
}

func (h *Handler) handleTransferRequest(w http.ResponseWriter, r *http.Request) {
	body, err := decodeTransferBody(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.transfer.Request(r.Context(), transfer.RequestArgs{
		RepoID: chi.URLParam(r, "repoID"),
		Actor:  body.Actor,
		Trid: model.Trid{
			ClientTransactionID: body.ClientTrid,
			ServerTransactionID: body.ServerTrid,
		},
		AuthInfo: body.AuthInfo,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(result.Resource))
}

func (h *Handler) handleTransferApprove(w http.ResponseWriter, r *http.Request) {
	h.resolveTransfer(w, r, h.transfer.Approve)
}

func (h *Handler) handleTransferReject(w http.ResponseWriter, r *http.Request) {
	h.resolveTransfer(w, r, h.transfer.Reject)
}

func (h *Handler) handleTransferCancel(w http.ResponseWriter, r *http.Request) {
	h.resolveTransfer(w, r, h.transfer.Cancel)
}

func (h *Handler) resolveTransfer(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, args transfer.ResolveArgs) (*transfer.Result, error),
) {
	body, err := decodeTransferBody(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := op(r.Context(), transfer.ResolveArgs{
		RepoID:     chi.URLParam(r, "repoID"),
		Actor:      body.Actor,
		AuthInfo:   body.AuthInfo,
		AsRegistry: body.AsRegistry,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(result.Resource))
}
