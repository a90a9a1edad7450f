package middleware

import (
	midsec "MuseShare/middleware/security"

	"github.com/gin-gonic/gin"
)

// RouteOpt controls per-route behavior.
type RouteOpt struct {
	IsAuth bool
}

var authOptions *midsec.Options

// ConfigAuth sets the auth middleware options used by the route wrappers.
func ConfigAuth(opts *midsec.Options) {
	authOptions = opts
}

func wrap(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.IsAuth {
		return []gin.HandlerFunc{midsec.Middleware(authOptions), handler}
	}
	return []gin.HandlerFunc{handler}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, wrap(handler, opt)...)
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, wrap(handler, opt)...)
}

func PATCH(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PATCH(path, wrap(handler, opt)...)
}

func DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, wrap(handler, opt)...)
}
