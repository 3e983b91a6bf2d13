// Package refcode encodes document and certificate identities into compact,
// scannable payloads and decodes them back.
package refcode

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"healthcert/internal/domain"
	dErrors "healthcert/pkg/domain-errors"
)

// payloadPrefix versions the wire format. Bump the digit on breaking changes
// so stale codes fail decoding loudly instead of resolving to garbage.
const payloadPrefix = "HC1."

type envelope struct {
	Version   int    `json:"v"`
	Subject   string `json:"t"`
	SubjectID string `json:"id"`
}

// Service encodes and decodes reference codes. Encoding is deterministic:
// Decode(Encode(t, id)) == (t, id) for every valid subject, including ids
// with reserved characters and the empty id.
type Service struct{}

func NewService() *Service { return &Service{} }

// Encode packs a subject into an opaque payload.
func (s *Service) Encode(subjectType domain.SubjectType, subjectID string) (domain.ReferenceCode, error) {
	if !subjectType.IsValid() {
		return domain.ReferenceCode{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown subject type %q", subjectType)
	}
	raw, err := json.Marshal(envelope{Version: 1, Subject: string(subjectType), SubjectID: subjectID})
	if err != nil {
		return domain.ReferenceCode{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode reference payload")
	}
	return domain.ReferenceCode{
		Payload:     payloadPrefix + base64.RawURLEncoding.EncodeToString(raw),
		SubjectType: subjectType,
		SubjectID:   subjectID,
	}, nil
}

// Decode recovers the subject from a payload produced by Encode.
//
// Errors: CodeMalformedPayload for anything Encode did not produce; no other
// errors are expected.
func (s *Service) Decode(payload string) (domain.SubjectType, string, error) {
	body, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return "", "", dErrors.New(dErrors.CodeMalformedPayload, "missing reference code prefix")
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeMalformedPayload, "payload is not valid base64url")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeMalformedPayload, "payload envelope is not valid JSON")
	}
	if env.Version != 1 {
		return "", "", dErrors.Newf(dErrors.CodeMalformedPayload, "unsupported payload version %d", env.Version)
	}
	subjectType, err := domain.ParseSubjectType(env.Subject)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeMalformedPayload, "unknown subject type in payload")
	}
	return subjectType, env.SubjectID, nil
}
