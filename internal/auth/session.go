package auth

import (
	"net/http"
	"strings"
)

// Session derives the logged-in principal from a raw access token. It is the
// single source of truth for initial authentication state and it never fails:
// a malformed, expired, or wrong-kind token all collapse to nil ("not logged
// in"). Validation is purely cryptographic, so the answer is identical across
// cold and warm starts and the call is safe to repeat.
func (s *Service) Session(raw string) *Principal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	claims, err := s.issuer.Parse(raw, TokenKindAccess)
	if err != nil {
		return nil
	}

	return &Principal{
		ID:     claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		Active: true,
	}
}

// SessionFromRequest reads the bearer token off the request and resolves it
// through Session. A missing or malformed Authorization header means nil.
func (s *Service) SessionFromRequest(r *http.Request) *Principal {
	return s.Session(bearerToken(r))
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
