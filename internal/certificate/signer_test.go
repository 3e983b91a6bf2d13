package certificate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcert/internal/domain"
	dErrors "healthcert/pkg/domain-errors"
)

func TestJWTSignerRoundTrip(t *testing.T) {
	signer := NewJWTSigner("test-signing-key", "healthcert-authority")

	cert := domain.Certificate{
		ID:           domain.NewCertificateID(),
		DocumentID:   domain.DocumentID("doc-42"),
		IssuedAt:     time.Now().UTC(),
		SecurityTier: domain.TierEnhanced,
	}

	payload, err := signer.Sign(cert)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	claims, err := signer.Verify(payload)
	require.NoError(t, err)
	assert.Equal(t, cert.ID.String(), claims.Subject)
	assert.Equal(t, "doc-42", claims.DocumentID)
	assert.Equal(t, "enhanced", claims.SecurityTier)
	assert.Equal(t, "healthcert-authority", claims.Issuer)
}

func TestJWTSignerRejectsTampering(t *testing.T) {
	signer := NewJWTSigner("test-signing-key", "healthcert-authority")

	payload, err := signer.Sign(domain.Certificate{
		ID:         domain.NewCertificateID(),
		DocumentID: domain.NewDocumentID(),
		IssuedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	t.Run("flipped payload byte", func(t *testing.T) {
		parts := strings.Split(payload, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1][:len(parts[1])-2] + "xx." + parts[2]

		_, err := signer.Verify(tampered)
		assert.True(t, dErrors.Is(err, dErrors.CodeVerificationFailed))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTSigner("a-different-key", "healthcert-authority")
		_, err := other.Verify(payload)
		assert.True(t, dErrors.Is(err, dErrors.CodeVerificationFailed))
	})

	t.Run("not a token at all", func(t *testing.T) {
		_, err := signer.Verify("garbage")
		assert.True(t, dErrors.Is(err, dErrors.CodeVerificationFailed))
	})
}
