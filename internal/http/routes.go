package http

import (
	"github.com/gin-gonic/gin"
)

// RouteGroup is a set of routes mounted under the API group.
type RouteGroup interface {
	RegisterRoutes(rg *gin.RouterGroup)
}
