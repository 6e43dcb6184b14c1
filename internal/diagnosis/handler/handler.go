package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"akashic/internal/diagnosis"
	dErrors "akashic/pkg/domain-errors"
	"akashic/pkg/platform/httputil"
	"akashic/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler needs.
type Service interface {
	CreateFree(ctx context.Context, name, birthDate string) (diagnosis.Projection, error)
	CreateDetailed(ctx context.Context, name, birthDate string, categories []string, freeText string) (diagnosis.Projection, error)
	View(ctx context.Context, token string) (diagnosis.Projection, error)
	Document(ctx context.Context, token string) ([]byte, error)
}

// Handler wires diagnosis endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a diagnosis handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts diagnosis endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/diagnosis/free", h.handleCreateFree)
	r.Post("/diagnosis/detail", h.handleCreateDetailed)
	r.Get("/diagnosis/{token}", h.handleGet)
	r.Get("/diagnosis/{token}/document", h.handleDocument)
}

func (h *Handler) handleCreateFree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var req FreeDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.CreateFree(ctx, req.Name, req.BirthDate)
	if err != nil {
		h.logger.ErrorContext(ctx, "free diagnosis creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "free diagnosis created",
		"request_id", requestID,
		"token", p.Token,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FreeDiagnosisResponse{
		Token:  p.Token,
		Result: p.Result,
	})
}

func (h *Handler) handleCreateDetailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var req DetailedDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.CreateDetailed(ctx, req.Name, req.BirthDate, req.Categories, req.FreeText)
	if err != nil {
		h.logger.ErrorContext(ctx, "detailed diagnosis creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "detailed diagnosis created",
		"request_id", requestID,
		"token", p.Token,
		"categories", req.Categories,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, DetailedDiagnosisResponse{
		Token:         p.Token,
		PartialResult: p.Result,
		IsLocked:      p.Locked,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	p, err := h.service.View(ctx, token)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "diagnosis lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"token", token,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromProjection(p))
}

func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	data, err := h.service.Document(ctx, token)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) && !dErrors.Is(err, dErrors.CodeLocked) {
			h.logger.ErrorContext(ctx, "diagnosis document rendering failed",
				"request_id", requestcontext.RequestID(ctx),
				"token", token,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "diagnosis-"+token+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
