package certificate

import (
	"context"
	"log/slog"
	"time"

	"healthcert/internal/audit"
	"healthcert/internal/domain"
	"healthcert/internal/platform/metrics"
	"healthcert/internal/refcode"
	"healthcert/internal/registry"
	dErrors "healthcert/pkg/domain-errors"
)

// Registry is the slice of the document registry issuance needs.
type Registry interface {
	Get(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	TransitionToIssued(ctx context.Context, id domain.DocumentID, cert registry.IssuedCertificate) error
}

// AuditPublisher is the slice of the audit trail issuance needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Issuer mints certificates for verified documents. Issuance is the single
// writer of the pending -> issued edge; the registry store makes that edge
// atomic with certificate persistence.
type Issuer struct {
	registry Registry
	signer   Signer
	refcodes *refcode.Service
	ledger   *OutcomeLedger
	identity string

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
	now     func() time.Time
}

type IssuerOption func(*Issuer)

func WithLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = logger }
}

func WithMetrics(m *metrics.Metrics) IssuerOption {
	return func(i *Issuer) { i.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) IssuerOption {
	return func(i *Issuer) { i.audit = publisher }
}

// WithClock overrides the issuance timestamp source. Tests only.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(reg Registry, signer Signer, refcodes *refcode.Service, ledger *OutcomeLedger, identity string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		registry: reg,
		signer:   signer,
		refcodes: refcodes,
		ledger:   ledger,
		identity: identity,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ledger exposes the outcome ledger so verification can record results.
func (i *Issuer) Ledger() *OutcomeLedger { return i.ledger }

// Issue creates, signs, and persists a certificate for a verified pending
// document, flipping the document to issued in the same transition.
//
// Errors: CodeNotVerified when the document's latest verification run did not
// end verified; CodeInvalidTransition when the document is not pending;
// CodeNotFound when the document does not exist.
func (i *Issuer) Issue(ctx context.Context, docID domain.DocumentID, tier domain.SecurityTier) (registry.IssuedCertificate, error) {
	if !i.ledger.Verified(docID) {
		return registry.IssuedCertificate{}, dErrors.Newf(dErrors.CodeNotVerified,
			"document %s has no successful verification on record", docID)
	}

	cert := domain.Certificate{
		ID:           domain.NewCertificateID(),
		DocumentID:   docID,
		IssuedAt:     i.now().UTC(),
		IssuedBy:     i.identity,
		SecurityTier: tier,
	}

	payload, err := i.signer.Sign(cert)
	if err != nil {
		return registry.IssuedCertificate{}, err
	}
	cert.SignaturePayload = payload

	code, err := i.refcodes.Encode(domain.SubjectCertificate, cert.ID.String())
	if err != nil {
		return registry.IssuedCertificate{}, err
	}

	issued := registry.IssuedCertificate{
		Certificate:      cert,
		ReferencePayload: code.Payload,
	}
	if err := i.registry.TransitionToIssued(ctx, docID, issued); err != nil {
		return registry.IssuedCertificate{}, err
	}

	if i.metrics != nil {
		i.metrics.CertificatesIssued.Inc()
	}
	if i.audit != nil {
		_ = i.audit.Emit(ctx, audit.NewEvent(audit.KindCertificateIssued, cert.ID.String(), map[string]string{
			"document_id": docID.String(),
			"tier":        string(tier),
		}))
	}
	i.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert.ID,
		"document_id", docID,
		"tier", tier,
	)
	return issued, nil
}
