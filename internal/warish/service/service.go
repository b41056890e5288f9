// Package service orchestrates the warish application lifecycle: submission,
// staff assignment, document verification, review decisions, corrections,
// family capture and certificate issuance.
//
// Every mutation runs in one transaction under the application's keyed lock.
// Status writes compare-and-swap the version so a concurrent writer that
// slipped past the lock (another instance) loses with a Conflict.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"warish/internal/warish/lineage"
	"warish/internal/warish/metrics"
	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/sentinel"
	txcontext "warish/pkg/platform/tx"
	"warish/pkg/requestcontext"
)

// Store is the persistence the service needs. Implementations return
// sentinel errors and run on the transaction bound to ctx.
type Store interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	FindApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	FindApplicationForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	FindApplicationByAck(ctx context.Context, ackCode string) (*models.Application, error)
	UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int) error

	InsertDocument(ctx context.Context, doc *models.Document) error
	FindDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	ListDocuments(ctx context.Context, appID id.ApplicationID) ([]*models.Document, error)
	FindCertificate(ctx context.Context, appID id.ApplicationID) (*models.Document, error)
	SetVerification(ctx context.Context, docID id.DocumentID, v models.Verification, now time.Time) (bool, error)

	ReplaceFamily(ctx context.Context, appID id.ApplicationID, members []*models.FamilyMember) error
	ListFamily(ctx context.Context, appID id.ApplicationID) ([]*models.FamilyMember, error)

	CreateCorrection(ctx context.Context, c *models.CorrectionRequest) error
	FindCorrection(ctx context.Context, corrID id.CorrectionID) (*models.CorrectionRequest, error)
	FindCorrectionForUpdate(ctx context.Context, corrID id.CorrectionID) (*models.CorrectionRequest, error)
	ResolveCorrection(ctx context.Context, c *models.CorrectionRequest) error
	ListCorrections(ctx context.Context, appID id.ApplicationID) ([]*models.CorrectionRequest, error)
}

// TxRunner runs fn as one unit of work. Implementations bind their
// transaction to the ctx passed to fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ComplianceAuditor writes audit events that must commit with the change.
type ComplianceAuditor interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// OpsTracker records routine activity off the request path.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// AuditReader lists an application's audit trail.
type AuditReader interface {
	ListByApplication(ctx context.Context, appID id.ApplicationID) ([]audit.Event, error)
}

const (
	defaultStorageTimeout = 10 * time.Second
	defaultLeaseTTL       = 30 * time.Second
	maxAckAttempts        = 3
)

type Service struct {
	store    Store
	tx       TxRunner
	storage  ports.Storage
	renderer ports.Renderer

	notifier   ports.Notifier
	lease      ports.Lease
	compliance ComplianceAuditor
	ops        OpsTracker
	auditLog   AuditReader
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	policy         models.Policy
	storageTimeout time.Duration
	leaseTTL       time.Duration
	maxDepth       int
	clock          func() time.Time
	newAckCode     func(time.Time) (string, error)

	locks keyedLocks
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLease sets the cross-instance issuance lease. Without one only the
// in-process lock and the database constraints guard issuance.
func WithLease(l ports.Lease, ttl time.Duration) Option {
	return func(s *Service) {
		s.lease = l
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

func WithComplianceAuditor(a ComplianceAuditor) Option {
	return func(s *Service) {
		s.compliance = a
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) {
		s.ops = t
	}
}

func WithAuditReader(r AuditReader) Option {
	return func(s *Service) {
		s.auditLog = r
	}
}

func WithPolicy(p models.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storageTimeout = d
		}
	}
}

// WithMaxLineageDepth bounds family trees. Zero means unlimited.
func WithMaxLineageDepth(d int) Option {
	return func(s *Service) {
		s.maxDepth = d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(store Store, tx TxRunner, storage ports.Storage, renderer ports.Renderer, opts ...Option) *Service {
	s := &Service{
		store:          store,
		tx:             tx,
		storage:        storage,
		renderer:       renderer,
		logger:         slog.Default(),
		policy:         models.DefaultPolicy,
		storageTimeout: defaultStorageTimeout,
		leaseTTL:       defaultLeaseTTL,
		clock:          time.Now,
		newAckCode:     models.NewAckCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("warish/service")
	}
	return s
}

// now prefers the request-scoped time so one request sees one instant.
func (s *Service) now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return s.clock()
}

func requireStaff(ctx context.Context) (id.StaffID, error) {
	staffID := requestcontext.StaffID(ctx)
	if staffID.IsEmpty() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "staff authentication required")
	}
	return staffID, nil
}

// inTx runs fn in a transaction scoped to one application.
func (s *Service) inTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(txcontext.WithLockKey(ctx, appID.String()), fn)
}

func (s *Service) lineageOptions() []lineage.Option {
	return []lineage.Option{lineage.WithMaxDepth(s.maxDepth)}
}

// translate maps store sentinels to coded errors. Coded errors pass through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" was modified concurrently")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sentinel.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
}

func (s *Service) loadApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindApplication(ctx, appID)
	if err != nil {
		return nil, translate(err, "application")
	}
	return app, nil
}

func (s *Service) lockApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindApplicationForUpdate(ctx, appID)
	if err != nil {
		return nil, translate(err, "application")
	}
	return app, nil
}

// emit writes a compliance event. A failure aborts the caller's transaction.
func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) error {
	if s.compliance == nil {
		return nil
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := s.compliance.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) emitTransition(ctx context.Context, tr *models.Transition, subject string) error {
	event := audit.ComplianceEvent{
		Timestamp:     tr.At,
		ApplicationID: tr.ApplicationID,
		Subject:       subject,
		Action:        audit.EventStatusChanged,
		FromStatus:    string(tr.From),
		ToStatus:      string(tr.To),
		Reason:        tr.Note,
		ActorID:       string(tr.Actor),
	}
	if tr.Action == models.ActionReopen {
		event.Action = audit.EventReopenOverride
	}
	return s.emit(ctx, event)
}

func (s *Service) track(ctx context.Context, event audit.OpsEvent) {
	if s.ops == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	s.ops.Track(ctx, event)
}

// notify hands n to the notifier. Failures are logged and never surface.
func (s *Service) notify(ctx context.Context, n ports.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		s.logger.WarnContext(ctx, "notification not delivered",
			"event", string(n.Event),
			"recipient", n.Recipient,
			"error", err,
		)
	}
}

func applicantRecipient(app *models.Application) string {
	return "applicant:" + app.AckCode
}

const officeRecipient = "office:warish-desk"

func staffRecipient(app *models.Application) string {
	if app.AssignedStaff != nil {
		return "staff:" + string(*app.AssignedStaff)
	}
	return officeRecipient
}

// startSpan opens a span that endSpan closes with the operation's outcome.
func (s *Service) startSpan(ctx context.Context, name string, appID id.ApplicationID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(applicationAttr(appID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}

func (s *Service) logInternal(ctx context.Context, msg string, err error, args ...any) {
	if err == nil || dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	s.logger.ErrorContext(ctx, msg, append(args, "error", err, "request_id", requestcontext.RequestID(ctx))...)
}
