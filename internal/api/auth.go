package api

import (
	"net/http"
	"strings"

	"gennotes/internal/config"
	"gennotes/pkg/domain"

	"github.com/gin-gonic/gin"
)

const actorKey = "gennotes_actor"

// TokenResolver maps a bearer token to the actor it was issued to.
type TokenResolver interface {
	Resolve(token string) (domain.Actor, bool)
}

// StaticTokens resolves tokens from a fixed table, normally loaded from config.
type StaticTokens map[string]domain.Actor

// NewStaticTokens builds a resolver from configured token grants.
func NewStaticTokens(entries []config.TokenConfig) StaticTokens {
	out := make(StaticTokens, len(entries))
	for _, e := range entries {
		out[e.Token] = domain.Actor{
			ID:       e.UserID,
			Username: e.Username,
			Scopes:   append([]string(nil), e.Scopes...),
		}
	}
	return out
}

// Resolve implements TokenResolver.
func (t StaticTokens) Resolve(token string) (domain.Actor, bool) {
	actor, ok := t[token]
	return actor, ok
}

// SetActor stores the authenticated actor in the gin context.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

// GetActor returns the authenticated actor, or the zero (anonymous) actor.
func GetActor(c *gin.Context) domain.Actor {
	if v, exists := c.Get(actorKey); exists {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Actor{}
}

// BearerAuth resolves "Authorization: Bearer <token>". Requests without the
// header continue anonymously; an unknown token is rejected outright.
func BearerAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authorization header must use the Bearer scheme."})
			return
		}
		if resolver == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}
		actor, ok := resolver.Resolve(strings.TrimSpace(token))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}
		SetActor(c, actor)
		c.Next()
	}
}

// requireActor rejects anonymous callers. Scope checks stay in the service.
func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor := GetActor(c)
	if actor.Anonymous() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return domain.Actor{}, false
	}
	return actor, true
}
