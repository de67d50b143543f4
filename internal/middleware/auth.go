package middleware

import (
	"strings"

	"quadra/internal/models"
	"quadra/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ViewerLocal is the Fiber locals key holding the authenticated viewer id.
const ViewerLocal = "viewerID"

// ViewerAuth parses bearer tokens issued by the hosted auth service.
type ViewerAuth struct {
	secret []byte
	issuer string
}

// NewViewerAuth creates a ViewerAuth. An empty issuer accepts any issuer.
func NewViewerAuth(secret, issuer string) *ViewerAuth {
	return &ViewerAuth{secret: []byte(secret), issuer: issuer}
}

// Parse validates tokenString and returns the viewer id from its subject claim.
func (a *ViewerAuth) Parse(tokenString string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, models.NewUnauthorizedError("Invalid viewer ID in token")
	}
	return id, nil
}

// OptionalViewer resolves the viewer when a valid token is present and
// otherwise lets the request through anonymously.
func (a *ViewerAuth) OptionalViewer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			if id, err := a.Parse(tokenString); err == nil {
				setViewer(c, id)
			}
		}
		return c.Next()
	}
}

// ViewerRequired rejects requests without a valid token.
func (a *ViewerAuth) ViewerRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		id, err := a.Parse(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		setViewer(c, id)
		return c.Next()
	}
}

// ViewerID returns the viewer id stored by the auth middleware, or uuid.Nil.
func ViewerID(c *fiber.Ctx) uuid.UUID {
	if v, ok := c.Locals(ViewerLocal).(string); ok {
		if id, err := uuid.Parse(v); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func setViewer(c *fiber.Ctx, id uuid.UUID) {
	c.Locals(ViewerLocal, id.String())
	c.SetUserContext(observability.WithViewer(c.UserContext(), id.String()))
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter which browsers need for WebSocket upgrades.
func bearerToken(c *fiber.Ctx) string {
	if header := c.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
