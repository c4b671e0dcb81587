package server

import (
	"fmt"
	"net/http"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/engine/infra/server/router"
	"github.com/gin-gonic/gin"
)

const codeISBNMismatch = "isbn_mismatch"

type bookHandlers struct {
	port            bookstore.Port
	defaultStrategy book.ReadStrategy
}

// list handles GET /books?strategy=manual|declarative|streamed.
func (h *bookHandlers) list(c *gin.Context) {
	strategy := h.defaultStrategy
	if raw := c.Query("strategy"); raw != "" {
		parsed, err := book.ParseReadStrategy(raw)
		if err != nil {
			router.RespondError(c, err)
			return
		}
		strategy = parsed
	}
	books, err := h.port.ReadAll(c.Request.Context(), strategy)
	if err != nil {
		router.RespondError(c, err)
		return
	}
	if books == nil {
		books = []*book.Book{}
	}
	router.RespondOK(c, http.StatusOK, gin.H{
		"strategy": strategy,
		"count":    len(books),
		"books":    books,
	})
}

func (h *bookHandlers) get(c *gin.Context) {
	b, err := h.port.GetRecord(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		router.RespondError(c, err)
		return
	}
	router.RespondOK(c, http.StatusOK, b)
}

func (h *bookHandlers) create(c *gin.Context) {
	b, ok := bindBook(c)
	if !ok {
		return
	}
	if err := h.port.CreateRecord(c.Request.Context(), b); err != nil {
		router.RespondError(c, err)
		return
	}
	c.Header("Location", c.Request.URL.Path+"/"+b.ISBN)
	router.RespondOK(c, http.StatusCreated, b)
}

// update handles PUT /books/:isbn. A body ISBN, when present, must match the
// path.
func (h *bookHandlers) update(c *gin.Context) {
	b, ok := bindBook(c)
	if !ok {
		return
	}
	isbn := c.Param("isbn")
	if b.ISBN == "" {
		b.ISBN = isbn
	}
	if b.ISBN != isbn {
		router.RespondProblemWithCode(c, http.StatusBadRequest, codeISBNMismatch,
			fmt.Sprintf("body isbn %q does not match path isbn %q", b.ISBN, isbn))
		return
	}
	if err := h.port.UpdateRecord(c.Request.Context(), b); err != nil {
		router.RespondError(c, err)
		return
	}
	router.RespondOK(c, http.StatusOK, b)
}

func bindBook(c *gin.Context) (*book.Book, bool) {
	var b book.Book
	if err := c.ShouldBindJSON(&b); err != nil {
		router.RespondError(c, fmt.Errorf("%w: %v", core.ErrInvalidInput, err))
		return nil, false
	}
	return &b, true
}
