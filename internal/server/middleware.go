package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/bookkeeping/internal/orgcontext"
)

const (
	HeaderOrg = "X-Org-ID"

	contextActorKey = "actor"
)

// Claims is the bearer token payload. OrgID is optional; requests without
// it name the organization through X-Org-ID.
type Claims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id,omitempty"`
	Role  string `json:"role,omitempty"`
}

var errMalformedBearer = errors.New("malformed bearer token")

// AuthRequired validates the HS256 bearer token, resolves the active
// organization and stores both on the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		subject := strings.TrimSpace(claims.Subject)
		if subject == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := resolveOrgID(claims.OrgID, c.GetHeader(HeaderOrg))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actor := Actor{OrgID: orgID, ID: subject, Role: strings.TrimSpace(claims.Role)}
		if subject == string(ActorSystem) {
			actor.Type = ActorSystem
		} else {
			actor.Type = ActorUser
		}
		c.Set(contextActorKey, actor)

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		ctx = orgcontext.WithActor(ctx, actor.subject())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) parseToken(raw string) (*Claims, error) {
	secret := []byte(s.cfg.AuthJWTSecret)
	if len(secret) == 0 {
		return nil, ErrUnauthorized
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedBearer
	}
	return parts[1], nil
}

// resolveOrgID prefers the token claim. A header naming a different
// organization than the claim is rejected.
func resolveOrgID(claim, header string) (snowflake.ID, error) {
	claim = strings.TrimSpace(claim)
	header = strings.TrimSpace(header)

	var fromClaim, fromHeader snowflake.ID
	if claim != "" {
		parsed, err := snowflake.ParseString(claim)
		if err != nil || parsed <= 0 {
			return 0, ErrUnauthorized
		}
		fromClaim = parsed
	}
	if header != "" {
		parsed, err := snowflake.ParseString(header)
		if err != nil || parsed <= 0 {
			return 0, newValidationError("org_id", "invalid_org_id", "invalid X-Org-ID header")
		}
		fromHeader = parsed
	}

	switch {
	case fromClaim != 0 && fromHeader != 0 && fromClaim != fromHeader:
		return 0, ErrForbidden
	case fromClaim != 0:
		return fromClaim, nil
	case fromHeader != 0:
		return fromHeader, nil
	default:
		return 0, newValidationError("org_id", "missing_org_id", "organization is required")
	}
}
