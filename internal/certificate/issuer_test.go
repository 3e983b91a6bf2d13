package certificate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcert/internal/audit"
	"healthcert/internal/certificate"
	"healthcert/internal/domain"
	"healthcert/internal/refcode"
	"healthcert/internal/registry"
	dErrors "healthcert/pkg/domain-errors"
)

type capturingAudit struct {
	events []audit.Event
}

func (c *capturingAudit) Emit(_ context.Context, event audit.Event) error {
	c.events = append(c.events, event)
	return nil
}

func newIssuerFixture(t *testing.T) (*certificate.Issuer, *registry.Service, *capturingAudit) {
	t.Helper()
	reg := registry.New(registry.NewInMemoryStore())
	trail := &capturingAudit{}
	issuer := certificate.NewIssuer(
		reg,
		certificate.NewJWTSigner("test-signing-key", "healthcert-authority"),
		refcode.NewService(),
		certificate.NewOutcomeLedger(),
		"healthcert-authority",
		certificate.WithAuditPublisher(trail),
	)
	return issuer, reg, trail
}

func createPending(t *testing.T, reg *registry.Service) domain.Document {
	t.Helper()
	doc, err := reg.Create(context.Background(), domain.Document{
		Type:   domain.DocumentTypeMedicalRecord,
		Name:   "Medical Record",
		Status: domain.DocumentStatusPending,
	})
	require.NoError(t, err)
	return doc
}

func TestIssuerRequiresVerification(t *testing.T) {
	issuer, reg, _ := newIssuerFixture(t)
	doc := createPending(t, reg)

	_, err := issuer.Issue(context.Background(), doc.ID, domain.TierStandard)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotVerified))

	found, err := reg.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, found.Status, "rejected issuance must not move the document")
}

func TestIssuerIssuesVerifiedDocument(t *testing.T) {
	ctx := context.Background()
	issuer, reg, trail := newIssuerFixture(t)
	doc := createPending(t, reg)
	issuer.Ledger().Record(doc.ID, domain.OutcomeVerified)

	issued, err := issuer.Issue(ctx, doc.ID, domain.TierEnhanced)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, issued.DocumentID)
	assert.Equal(t, domain.TierEnhanced, issued.SecurityTier)
	assert.Equal(t, "healthcert-authority", issued.IssuedBy)
	assert.NotEmpty(t, issued.SignaturePayload)
	assert.WithinDuration(t, time.Now().UTC(), issued.IssuedAt, 5*time.Second)

	found, err := reg.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusIssued, found.Status)

	stored, err := reg.GetCertificate(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.SignaturePayload, stored.SignaturePayload)

	require.Len(t, trail.events, 1)
	assert.Equal(t, audit.KindCertificateIssued, trail.events[0].Kind)
	assert.Equal(t, issued.ID.String(), trail.events[0].SubjectID)
	assert.Equal(t, doc.ID.String(), trail.events[0].Detail["document_id"])
}

func TestIssuerSignatureAndReferenceAreResolvable(t *testing.T) {
	ctx := context.Background()
	issuer, reg, _ := newIssuerFixture(t)
	doc := createPending(t, reg)
	issuer.Ledger().Record(doc.ID, domain.OutcomeVerified)

	issued, err := issuer.Issue(ctx, doc.ID, domain.TierGovernment)
	require.NoError(t, err)

	signer := certificate.NewJWTSigner("test-signing-key", "healthcert-authority")
	claims, err := signer.Verify(issued.SignaturePayload)
	require.NoError(t, err)
	assert.Equal(t, issued.ID.String(), claims.Subject)
	assert.Equal(t, doc.ID.String(), claims.DocumentID)
	assert.Equal(t, "government", claims.SecurityTier)

	subjectType, subjectID, err := refcode.NewService().Decode(issued.ReferencePayload)
	require.NoError(t, err)
	assert.Equal(t, domain.SubjectCertificate, subjectType)
	assert.Equal(t, issued.ID.String(), subjectID)
}

func TestIssuerIssuesAtMostOnce(t *testing.T) {
	ctx := context.Background()
	issuer, reg, _ := newIssuerFixture(t)
	doc := createPending(t, reg)
	issuer.Ledger().Record(doc.ID, domain.OutcomeVerified)

	_, err := issuer.Issue(ctx, doc.ID, domain.TierStandard)
	require.NoError(t, err)

	_, err = issuer.Issue(ctx, doc.ID, domain.TierStandard)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidTransition))
}

func TestLedgerFailedRunOverridesVerified(t *testing.T) {
	issuer, reg, _ := newIssuerFixture(t)
	doc := createPending(t, reg)

	issuer.Ledger().Record(doc.ID, domain.OutcomeVerified)
	issuer.Ledger().Record(doc.ID, domain.OutcomeFailed)

	_, err := issuer.Issue(context.Background(), doc.ID, domain.TierStandard)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotVerified))
}
