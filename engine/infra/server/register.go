package server

import (
	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/infra/server/routes"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the versioned API on r.
func RegisterRoutes(r *gin.Engine, port bookstore.Port, defaultStrategy book.ReadStrategy) {
	api := r.Group(routes.Base())
	api.GET("/health", CreateHealthHandler(port))

	books := &bookHandlers{port: port, defaultStrategy: defaultStrategy}
	group := api.Group("/books")
	group.GET("", books.list)
	group.POST("", books.create)
	group.GET("/:isbn", books.get)
	group.PUT("/:isbn", books.update)

	api.POST("/workloads/transaction", createWorkloadHandler(port))
}
