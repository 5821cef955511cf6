package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
)

// LocalSubject is the fiber.Locals key holding the authenticated subject.
const LocalSubject = "subject"

// Claims are the identity fields read from a verified token.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// OIDCVerifier verifies ID tokens issued by an OpenID Connect provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// Verify implements TokenVerifier.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = idToken.Subject
	}
	return &claims, nil
}

var errMissingBearer = errors.New("missing bearer token")

// AuthMiddleware guards admin routes with bearer tokens.
type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireBearer rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireBearer(c fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return unauthorized(c, err.Error())
	}

	claims, err := m.verifier.Verify(c.Context(), raw)
	if err != nil {
		slog.Warn("rejected bearer token", "path", c.Path(), "error", err)
		return unauthorized(c, "invalid token")
	}

	c.Locals(LocalSubject, claims.Subject)
	return c.Next()
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", errMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

func unauthorized(c fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="kwrec"`)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"status": "error",
		"error":  msg,
	})
}
