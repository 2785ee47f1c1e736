package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taxid/internal/registry"
	"taxid/pkg/afm"
	dErrors "taxid/pkg/domain-errors"
	"taxid/pkg/platform/httputil"
	"taxid/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	ValidateNumber(raw string) (afm.AFM, error)
	Lookup(ctx context.Context, calledFor, calledBy string) (*registry.Registration, error)
	Version(ctx context.Context) (string, error)
}

// Handler wires AFM and registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/afm/validate", h.HandleValidate)
	r.Get("/afm/{number}", h.HandleValidatePath)
	r.Post("/afm/lookup", h.HandleLookup)
	r.Get("/registry/version", h.HandleVersion)
}

// HandleValidate handles POST /afm/validate. Invalid numbers are a normal
// outcome and return 200 with valid=false and the rejection reason.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ValidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.validate(req.Number))
}

// HandleValidatePath handles GET /afm/{number}.
func (h *Handler) HandleValidatePath(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if len(number) > maxNumberLength {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "number must be at most 64 characters"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.validate(number))
}

func (h *Handler) validate(raw string) *ValidateResponse {
	resp := &ValidateResponse{Input: raw, Compact: afm.Compact(raw)}
	number, err := h.service.ValidateNumber(raw)
	if err != nil {
		var verr *afm.ValidationError
		if errors.As(err, &verr) {
			resp.Reason = string(verr.Kind)
		}
		return resp
	}
	resp.Valid = true
	resp.VAT = number.VAT()
	return resp
}

// HandleLookup handles POST /afm/lookup.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[LookupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Lookup(ctx, req.CalledFor, req.CalledBy)
	if err != nil {
		h.logger.WarnContext(ctx, "afm lookup failed",
			"request_id", requestID,
			"error", err,
		)
		writeLookupError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "afm lookup served",
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(record))
}

// HandleVersion handles GET /registry/version.
func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	version, err := h.service.Version(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "registry version failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VersionResponse{Version: version})
}

// writeLookupError adds the registry's own code and description to the error
// envelope when the registry reported the failure.
func writeLookupError(w http.ResponseWriter, err error) {
	var svcErr *registry.ServiceError
	if !errors.As(err, &svcErr) {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, dErrors.ToHTTPStatus(dErrors.CodeRegistry), ServiceErrorResponse{
		Error:              string(dErrors.CodeRegistry),
		ServiceCode:        svcErr.Code,
		ServiceDescription: svcErr.Description,
	})
}
