// Package httptransport is the thin HTTP layer over the registry services. It
// translates JSON commands into service calls and coded errors into statuses;
// no business logic lives here, and protocol encoding stays out entirely.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kedh/regcore/internal/commitlog"
	"github.com/kedh/regcore/internal/label"
	"github.com/kedh/regcore/internal/registry/index"
	"github.com/kedh/regcore/internal/registry/info"
	"github.com/kedh/regcore/internal/registry/lifecycle"
	"github.com/kedh/regcore/internal/registry/transfer"
)

// Handler bundles the services the routes delegate to.
type Handler struct {
	logger    *slog.Logger
	transfer  *transfer.Service
	info      *info.Service
	lifecycle *lifecycle.Service
	index     *index.Merger
	labels    *label.Service

	checkpointer *commitlog.Checkpointer
	killer       *commitlog.Killer

	admin *AdminValidator
	now   func() time.Time
}

func NewHandler(
	logger *slog.Logger,
	transferSvc *transfer.Service,
	infoSvc *info.Service,
	lifecycleSvc *lifecycle.Service,
	merger *index.Merger,
	labels *label.Service,
	checkpointer *commitlog.Checkpointer,
	killer *commitlog.Killer,
	admin *AdminValidator,
	now func() time.Time,
) *Handler {
	return &Handler{
		logger:       logger,
		transfer:     transferSvc,
		info:         infoSvc,
		lifecycle:    lifecycleSvc,
		index:        merger,
		labels:       labels,
		checkpointer: checkpointer,
		killer:       killer,
		admin:        admin,
		now:          now,
	}
}

// NewRouter wires all endpoints. Task and admin routes sit behind the admin
// token guard; everything else is open to protocol front ends.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/registry", func(r chi.Router) {
		r.Put("/resources/{repoID}", h.handleCreateResource)
		r.Get("/resources/{repoID}", h.handleGetResource)
		r.Delete("/resources/{repoID}", h.handleDeleteResource)
		r.Get("/resources/{repoID}/marks", h.handleGetMarks)
		r.Post("/resources/{repoID}/transfer:request", h.handleTransferRequest)
		r.Post("/resources/{repoID}/transfer:approve", h.handleTransferApprove)
		r.Post("/resources/{repoID}/transfer:reject", h.handleTransferReject)
		r.Post("/resources/{repoID}/transfer:cancel", h.handleTransferCancel)
		r.Get("/names/{name}", h.handleLookupName)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin(h.admin, h.logger))
		r.Post("/task/commitlog/checkpoint", h.handleCheckpoint)
		r.Post("/task/commitlog/killall", h.handleKillAll)
		r.Put("/admin/labels/{name}", h.handleSaveLabels)
		r.Delete("/admin/labels/{name}", h.handleDeleteLabels)
	})

	return r
}
