package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kedh/regcore/internal/registry/lifecycle"
	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/pkg/errs"
)

type transferView struct {
	Status         string     `json:"status"`
	GainingID      string     `json:"gainingId"`
	LosingID       string     `json:"losingId"`
	RequestTime    time.Time  `json:"requestTime"`
	ExpirationTime time.Time  `json:"expirationTime"`
	ClientTrid     string     `json:"clientTrid,omitempty"`
	ServerTrid     string     `json:"serverTrid,omitempty"`
}

type resourceView struct {
	RepoID           string        `json:"repoId"`
	Kind             string        `json:"kind"`
	Name             string        `json:"name"`
	CurrentSponsor   string        `json:"currentSponsor"`
	CreationTime     time.Time     `json:"creationTime"`
	UpdateTime       time.Time     `json:"updateTime"`
	ExpirationTime   *time.Time    `json:"expirationTime,omitempty"`
	LastTransferTime *time.Time    `json:"lastTransferTime,omitempty"`
	Statuses         []string      `json:"statuses"`
	Transfer         *transferView `json:"transfer,omitempty"`
}

func viewOf(res *model.Resource) *resourceView {
	v := &resourceView{
		RepoID:         res.RepoID,
		Kind:           string(res.Kind),
		Name:           res.Name,
		CurrentSponsor: res.CurrentSponsor,
		CreationTime:   res.CreationTime,
		UpdateTime:     res.UpdateTime,
	}
	if !res.ExpirationTime.IsZero() {
		t := res.ExpirationTime
		v.ExpirationTime = &t
	}
	if !res.LastTransferTime.IsZero() {
		t := res.LastTransferTime
		v.LastTransferTime = &t
	}
	for st := range res.Statuses {
		v.Statuses = append(v.Statuses, string(st))
	}
	if res.Transfer != nil {
		v.Transfer = &transferView{
			Status:         string(res.Transfer.Status),
			GainingID:      res.Transfer.GainingID,
			LosingID:       res.Transfer.LosingID,
			RequestTime:    res.Transfer.RequestTime,
			ExpirationTime: res.Transfer.ExpirationTime,
			ClientTrid:     res.Transfer.RequestTrid.ClientTransactionID,
			ServerTrid:     res.Transfer.RequestTrid.ServerTransactionID,
		}
	}
	return v
}

// asOf reads the optional RFC 3339 query instant, defaulting to now.
func (h *Handler) asOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		return h.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errs.New(errs.CodeMissingParameter, "asOf must be RFC 3339")
	}
	return t, nil
}

type createResourceRequest struct {
	Kind              string   `json:"kind"`
	Name              string   `json:"name"`
	Sponsor           string   `json:"sponsor"`
	AuthInfo          string   `json:"authInfo,omitempty"`
	RegistrationYears int      `json:"registrationYears,omitempty"`
	SignedMarks       []string `json:"signedMarks,omitempty"`
}

func (h *Handler) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, errs.New(errs.CodeMissingParameter, "request body must be valid JSON"))
		return
	}
	res, err := h.lifecycle.Create(r.Context(), lifecycle.CreateArgs{
		RepoID:            chi.URLParam(r, "repoID"),
		Kind:              model.Kind(req.Kind),
		Name:              req.Name,
		Sponsor:           req.Sponsor,
		AuthInfo:          req.AuthInfo,
		RegistrationYears: req.RegistrationYears,
		SignedMarks:       req.SignedMarks,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(res))
}

func (h *Handler) handleGetResource(w http.ResponseWriter, r *http.Request) {
	at, err := h.asOf(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.info.Project(r.Context(), chi.URLParam(r, "repoID"), at)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res))
}

func (h *Handler) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get("X-Registrar-ID")
	if err := h.lifecycle.Delete(r.Context(), chi.URLParam(r, "repoID"), actor); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetMarks(w http.ResponseWriter, r *http.Request) {
	at, err := h.asOf(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	marks, err := h.info.Marks(r.Context(), chi.URLParam(r, "repoID"), at)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// []byte marshals to base64, which is the stored encoding anyway.
	writeJSON(w, http.StatusOK, map[string]any{"signedMarks": marks})
}

func (h *Handler) handleLookupName(w http.ResponseWriter, r *http.Request) {
	at, err := h.asOf(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resources, err := h.index.LoadActive(r.Context(), chi.URLParam(r, "name"), at)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	views := make([]*resourceView, 0, len(resources))
	for _, res := range resources {
		views = append(views, viewOf(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": views})
}
