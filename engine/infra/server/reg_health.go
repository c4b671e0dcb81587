package server

import (
	"net/http"

	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/server/router"
	"github.com/gin-gonic/gin"
)

const (
	statusReady    = "ready"
	statusNotReady = "not_ready"
)

// CreateHealthHandler reports whether the store answers a sanity query.
//
//	@Summary	Get server health
//	@Router		/api/v0/health [get]
func CreateHealthHandler(port bookstore.Port) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := port.Ping(c.Request.Context()); err != nil {
			router.RespondProblem(c, &core.Problem{
				Status: http.StatusServiceUnavailable,
				Detail: err.Error(),
				Extras: map[string]any{"code": core.ProblemCodeUnavailable, "health": statusNotReady},
			})
			return
		}
		router.RespondOK(c, http.StatusOK, gin.H{"status": statusReady})
	}
}
