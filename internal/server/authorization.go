package server

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

type Actor struct {
	Type  ActorType
	OrgID snowflake.ID
	ID    string
	Role  string
}

func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if actor.OrgID == 0 {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(
		c.Request.Context(),
		actor.subject(),
		actor.Role,
		actor.OrgID.String(),
		strings.TrimSpace(object),
		strings.TrimSpace(action),
	)
}

func actorFromContext(c *gin.Context) (Actor, bool) {
	if c == nil {
		return Actor{}, false
	}
	value, ok := c.Get(contextActorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := value.(Actor)
	return actor, ok
}

// orgID returns the organization resolved by AuthRequired.
func orgID(c *gin.Context) (snowflake.ID, error) {
	actor, ok := actorFromContext(c)
	if !ok || actor.OrgID == 0 {
		return 0, ErrUnauthorized
	}
	return actor.OrgID, nil
}

func (a Actor) subject() string {
	switch a.Type {
	case ActorUser:
		return fmt.Sprintf("user:%s", a.ID)
	case ActorSystem:
		return string(ActorSystem)
	default:
		return ""
	}
}
