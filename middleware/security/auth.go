package security

import (
	"net/http"
	"strings"

	"MuseShare/tools/errs"
	jwts "MuseShare/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserIDKey is where the resolved caller id lives in the gin context.
const CtxUserIDKey = "userId"

type Options struct {
	JWT jwts.Options

	HeaderToken               string // default "Authorization"
	EnableAuthorizationBearer bool   // default true
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:                       jwts.DefaultOptions(secret),
		HeaderToken:               "Authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware resolves the caller identity from the bearer token and puts the
// user id into the context. Handlers behind it can assume UserID(c) != "".
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		if opts.EnableAuthorizationBearer {
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrToken)
			return
		}

		userID, err := jwts.VerifySubject(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrToken.WithDetail(err.Error()))
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated caller id, empty if unauthenticated.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
