// Package certificate turns verified documents into signed certificates.
package certificate

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"healthcert/internal/domain"
	dErrors "healthcert/pkg/domain-errors"
)

// Claims are the signed assertions embedded in a certificate payload.
type Claims struct {
	DocumentID   string `json:"document_id"`
	SecurityTier string `json:"security_tier"`
	jwt.RegisteredClaims
}

// Signer produces and validates certificate signature payloads.
type Signer interface {
	Sign(cert domain.Certificate) (string, error)
	Verify(payload string) (*Claims, error)
}

// JWTSigner signs certificate payloads as HS256 JWTs.
type JWTSigner struct {
	signingKey []byte
	issuer     string
}

func NewJWTSigner(signingKey, issuer string) *JWTSigner {
	return &JWTSigner{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

func (s *JWTSigner) Sign(cert domain.Certificate) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DocumentID:   cert.DocumentID.String(),
		SecurityTier: string(cert.SecurityTier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  cert.ID.String(),
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(cert.IssuedAt),
			ID:       uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign certificate")
	}
	return signed, nil
}

func (s *JWTSigner) Verify(payload string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(payload, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeVerificationFailed, "certificate signature has expired")
		}
		return nil, dErrors.New(dErrors.CodeVerificationFailed, "invalid certificate signature")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeVerificationFailed, "invalid certificate claims")
	}
	return claims, nil
}
