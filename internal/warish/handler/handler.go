// Package handler exposes the warish workflow over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"warish/internal/warish/lineage"
	"warish/internal/warish/models"
	"warish/internal/warish/service"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/httputil"
	"warish/pkg/requestcontext"
)

const defaultMaxUploadBytes = 10 << 20

// Service is the workflow the handler drives.
type Service interface {
	Submit(ctx context.Context, in service.SubmitInput) (*models.Application, error)
	GetByAck(ctx context.Context, ackCode string) (*models.Application, error)
	Details(ctx context.Context, appID id.ApplicationID) (*service.Details, error)
	AssignStaff(ctx context.Context, appID id.ApplicationID, staffID id.StaffID) (*models.Application, bool, error)
	Transition(ctx context.Context, appID id.ApplicationID, cmd models.Command) (*models.Application, error)
	UploadDocument(ctx context.Context, appID id.ApplicationID, fileName string, payload []byte) (*models.Document, error)
	VerifyDocument(ctx context.Context, docID id.DocumentID) (*models.Document, bool, error)
	RejectDocument(ctx context.Context, docID id.DocumentID) (*models.Document, bool, error)
	CanIssueCertificate(ctx context.Context, appID id.ApplicationID) (bool, error)
	IssueCertificate(ctx context.Context, appID id.ApplicationID) (*models.Document, error)
	CaptureFamilyTree(ctx context.Context, appID id.ApplicationID, members []models.MemberInput) (*lineage.Tree, error)
	LineageTree(ctx context.Context, sel service.LineageSelector) (*lineage.Tree, error)
	CreateCorrectionRequest(ctx context.Context, appID id.ApplicationID, description string) (*models.CorrectionRequest, error)
	ResolveCorrectionRequest(ctx context.Context, reqID id.CorrectionID, r models.Resolution) (*models.CorrectionRequest, error)
	AuditTrail(ctx context.Context, appID id.ApplicationID) ([]audit.Event, error)
}

type Handler struct {
	service        Service
	logger         *slog.Logger
	requireStaff   func(http.Handler) http.Handler
	limitPublic    func(class string) func(http.Handler) http.Handler
	maxUploadBytes int64
}

type Option func(*Handler)

// WithMaxUploadBytes caps the size of an uploaded document.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithPublicLimiter throttles the unauthenticated routes. limit receives the
// route class ("submit" or "ack").
func WithPublicLimiter(limit func(class string) func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.limitPublic = limit
	}
}

// New constructs the handler. requireStaff guards every staff route.
func New(service Service, logger *slog.Logger, requireStaff func(http.Handler) http.Handler, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		logger:         logger,
		requireStaff:   requireStaff,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public citizen routes and the staff routes.
func (h *Handler) Register(r chi.Router) {
	r.With(h.public("submit")).Post("/applications", h.HandleSubmit)
	r.With(h.public("ack")).Get("/applications/ack/{code}", h.HandleStatusByAck)

	r.Group(func(r chi.Router) {
		r.Use(h.requireStaff)
		r.Get("/applications/{id}", h.HandleDetails)
		r.Post("/applications/{id}/assign", h.HandleAssign)
		r.Post("/applications/{id}/documents", h.HandleUpload)
		r.Post("/applications/{id}/transitions", h.HandleTransition)
		r.Get("/applications/{id}/certificate/eligibility", h.HandleEligibility)
		r.Post("/applications/{id}/certificate", h.HandleIssueCertificate)
		r.Put("/applications/{id}/family", h.HandleCaptureFamily)
		r.Get("/applications/{id}/family", h.HandleFamilyByApplication)
		r.Post("/applications/{id}/corrections", h.HandleCreateCorrection)
		r.Get("/applications/{id}/audit", h.HandleAuditTrail)
		r.Post("/documents/{id}/verify", h.HandleVerify)
		r.Post("/documents/{id}/reject", h.HandleReject)
		r.Get("/certificates/{id}/family", h.HandleFamilyByCertificate)
		r.Post("/corrections/{id}/resolve", h.HandleResolveCorrection)
	})
}

func (h *Handler) public(class string) func(http.Handler) http.Handler {
	if h.limitPublic == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limitPublic(class)
}

// fail writes err. Server-side failures are logged with the request id.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	args = append(args, "error", err, "request_id", requestcontext.RequestID(ctx))
	switch code {
	case dErrors.CodeInternal, dErrors.CodeStorageFailure, dErrors.CodeStorageTimeout, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg, args...)
	default:
		h.logger.InfoContext(ctx, msg, append(args, "kind", code)...)
	}
	httputil.WriteError(w, err)
}

func requestScope(r *http.Request) (ctx context.Context, requestID string) {
	ctx = r.Context()
	return ctx, requestcontext.RequestID(ctx)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := requestScope(r)
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	app, err := h.service.Submit(ctx, req.Input())
	if err != nil {
		h.fail(w, r, "application submission failed", err)
		return
	}
	h.logger.InfoContext(ctx, "application submitted",
		"application_id", app.ID,
		"ack_code", app.AckCode,
		"request_id", requestID,
	)
	httputil.WriteData(w, http.StatusCreated, toSubmitResponse(app))
}

func (h *Handler) HandleStatusByAck(w http.ResponseWriter, r *http.Request) {
	app, err := h.service.GetByAck(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, "status lookup failed", err)
		return
	}
	httputil.WriteData(w, http.StatusOK, toStatusResponse(app))
}

func (h *Handler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	details, err := h.service.Details(r.Context(), appID)
	if err != nil {
		h.fail(w, r, "failed to load application", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusOK, details)
}

func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	ctx, requestID := requestScope(r)
	req, ok := httputil.DecodeAndPrepare[AssignRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	app, changed, err := h.service.AssignStaff(ctx, appID, id.StaffID(req.StaffID))
	if err != nil {
		h.fail(w, r, "staff assignment failed", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusOK, AssignResponse{Application: app, Changed: changed})
}

func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	ctx, requestID := requestScope(r)
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	app, err := h.service.Transition(ctx, appID, req.Command())
	if err != nil {
		h.fail(w, r, "transition failed", err, "application_id", appID, "action", req.Action)
		return
	}
	httputil.WriteData(w, http.StatusOK, app)
}

// HandleUpload accepts a multipart form with the payload in field "file".
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.WriteError(w, uploadError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read uploaded file"))
		return
	}
	if int64(len(payload)) > h.maxUploadBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "uploaded file is too large").
			WithDetail("max_bytes", strconv.FormatInt(h.maxUploadBytes, 10)))
		return
	}

	doc, err := h.service.UploadDocument(r.Context(), appID, header.Filename, payload)
	if err != nil {
		h.fail(w, r, "document upload failed", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusCreated, doc)
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.New(dErrors.CodeValidation, "uploaded file is too large")
	}
	return dErrors.New(dErrors.CodeBadRequest, "expected a multipart/form-data body")
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.handleVerification(w, r, h.service.VerifyDocument)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.handleVerification(w, r, h.service.RejectDocument)
}

func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request,
	apply func(context.Context, id.DocumentID) (*models.Document, bool, error)) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	doc, changed, err := apply(r.Context(), docID)
	if err != nil {
		h.fail(w, r, "document verification failed", err, "document_id", docID)
		return
	}
	httputil.WriteData(w, http.StatusOK, VerificationResponse{Document: doc, Changed: changed})
}

func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	eligible, err := h.service.CanIssueCertificate(r.Context(), appID)
	if err != nil {
		h.fail(w, r, "eligibility check failed", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusOK, EligibilityResponse{ApplicationID: appID, Eligible: eligible})
}

func (h *Handler) HandleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.IssueCertificate(r.Context(), appID)
	if err != nil {
		h.fail(w, r, "certificate issuance failed", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusCreated, doc)
}

func (h *Handler) HandleCaptureFamily(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	ctx, requestID := requestScope(r)
	req, ok := httputil.DecodeAndPrepare[FamilyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	tree, err := h.service.CaptureFamilyTree(ctx, appID, req.Inputs())
	if err != nil {
		h.fail(w, r, "family capture failed", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusOK, tree)
}

func (h *Handler) HandleFamilyByApplication(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	h.writeLineage(w, r, service.LineageSelector{ApplicationID: &appID})
}

func (h *Handler) HandleFamilyByCertificate(w http.ResponseWriter, r *http.Request) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeLineage(w, r, service.LineageSelector{CertificateDocumentID: &docID})
}

func (h *Handler) writeLineage(w http.ResponseWriter, r *http.Request, sel service.LineageSelector) {
	tree, err := h.service.LineageTree(r.Context(), sel)
	if err != nil {
		h.fail(w, r, "failed to load family tree", err)
		return
	}
	httputil.WriteData(w, http.StatusOK, tree)
}

func (h *Handler) HandleCreateCorrection(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	ctx, requestID := requestScope(r)
	req, ok := httputil.DecodeAndPrepare[CorrectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	corr, err := h.service.CreateCorrectionRequest(ctx, appID, req.Description)
	if err != nil {
		h.fail(w, r, "correction request failed", err, "application_id", appID)
		return
	}
	httputil.WriteData(w, http.StatusCreated, corr)
}

func (h *Handler) HandleResolveCorrection(w http.ResponseWriter, r *http.Request) {
	reqID, err := id.ParseCorrectionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ctx, requestID := requestScope(r)
	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	corr, err := h.service.ResolveCorrectionRequest(ctx, reqID, req.Resolution())
	if err != nil {
		h.fail(w, r, "correction resolution failed", err, "correction_id", reqID)
		return
	}
	httputil.WriteData(w, http.StatusOK, corr)
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	appID, ok := h.applicationID(w, r)
	if !ok {
		return
	}
	events, err := h.service.AuditTrail(r.Context(), appID)
	if err != nil {
		h.fail(w, r, "failed to load audit trail", err, "application_id", appID)
		return
	}
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEventResponse{
			Category:   string(e.Category),
			Action:     e.Action,
			Subject:    e.Subject,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Reason:     e.Reason,
			ActorID:    e.ActorID,
			RequestID:  e.RequestID,
			Timestamp:  e.Timestamp,
		})
	}
	httputil.WriteData(w, http.StatusOK, out)
}

func (h *Handler) applicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return appID, true
}
