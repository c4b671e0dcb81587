package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/server/router"
	"github.com/gin-gonic/gin"
)

const (
	defaultWorkloadTodoID = 1
	codeIsolation         = "isolation_violated"
)

type workloadRequest struct {
	TodoID int64 `json:"todo_id"`
}

// createWorkloadHandler runs the transactional workload and returns its
// report. An isolation violation answers 500 with the report attached.
func createWorkloadHandler(port bookstore.Port) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := workloadRequest{TodoID: defaultWorkloadTodoID}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				router.RespondError(c, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
				return
			}
		}
		if req.TodoID <= 0 {
			router.RespondError(c, fmt.Errorf("%w: todo_id must be positive", core.ErrInvalidInput))
			return
		}
		report, err := port.RunTransactionalWorkload(c.Request.Context(), req.TodoID)
		switch {
		case errors.Is(err, bookstore.ErrIsolationViolated):
			router.RespondProblem(c, &core.Problem{
				Status: http.StatusInternalServerError,
				Detail: err.Error(),
				Extras: map[string]any{"code": codeIsolation, "report": report},
			})
		case err != nil:
			router.RespondError(c, err)
		default:
			router.RespondOK(c, http.StatusOK, report)
		}
	}
}
