package refcode

import (
	"encoding/base64"
	"strings"
	"testing"

	"healthcert/internal/domain"
	dErrors "healthcert/pkg/domain-errors"
	"healthcert/pkg/testutil"
)

func TestDecodeRejectsFutureVersions(t *testing.T) {
	svc := NewService()

	testutil.Given(t, "a payload minted under a newer format version", func(t *testing.T) {
		body := base64.RawURLEncoding.EncodeToString([]byte(`{"v":2,"t":"certificate","id":"cert-7"}`))
		payload := "HC1." + body

		testutil.When(t, "it is presented to the current decoder", func(t *testing.T) {
			_, _, err := svc.Decode(payload)

			testutil.Then(t, "decoding fails loudly instead of guessing at the schema", func(t *testing.T) {
				if !dErrors.Is(err, dErrors.CodeMalformedPayload) {
					t.Fatalf("expected malformed_payload, got %v", err)
				}
			})
		})
	})
}

func TestRoundTrip(t *testing.T) {
	svc := NewService()

	cases := []struct {
		name        string
		subjectType domain.SubjectType
		subjectID   string
	}{
		{"document id", domain.SubjectDocument, "doc-42"},
		{"certificate id", domain.SubjectCertificate, "0a6f7c1e-13d4-44a2-9d5a-2b7f4a9c8e01"},
		{"empty id", domain.SubjectDocument, ""},
		{"reserved characters", domain.SubjectCertificate, `a/b+c=d&e?f#g h"i`},
		{"unicode id", domain.SubjectDocument, "patient-号-42"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			code, err := svc.Encode(c.subjectType, c.subjectID)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			gotType, gotID, err := svc.Decode(code.Payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if gotType != c.subjectType || gotID != c.subjectID {
				t.Fatalf("round trip mismatch: got (%s, %q), want (%s, %q)",
					gotType, gotID, c.subjectType, c.subjectID)
			}
		})
	}
}

func TestEncodeRejectsUnknownSubjectType(t *testing.T) {
	svc := NewService()
	if _, err := svc.Encode(domain.SubjectType("patient"), "id"); err == nil {
		t.Fatalf("expected error for unknown subject type")
	}
}

func TestDecodeMalformedPayloads(t *testing.T) {
	svc := NewService()

	valid, err := svc.Encode(domain.SubjectDocument, "doc-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string]string{
		"empty":           "",
		"missing prefix":  strings.TrimPrefix(valid.Payload, "HC1."),
		"wrong prefix":    "HC2." + strings.TrimPrefix(valid.Payload, "HC1."),
		"invalid base64":  "HC1.!!!not-base64!!!",
		"non-json body":   "HC1." + "bm90IGpzb24",
		"truncated":       valid.Payload[:len(valid.Payload)-4],
		"arbitrary bytes": "SGVsbG8gV29ybGQ",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Decode(payload)
			if !dErrors.Is(err, dErrors.CodeMalformedPayload) {
				t.Fatalf("expected malformed_payload, got %v", err)
			}
		})
	}
}
