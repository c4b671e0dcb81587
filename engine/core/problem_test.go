package core

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemFromError(t *testing.T) {
	t.Run("Should map the error taxonomy to HTTP statuses", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("create: %w", ErrConstraintViolation), http.StatusConflict, ProblemCodeConflict},
			{NewConnectionError("begin", fmt.Errorf("dial")), http.StatusServiceUnavailable, ProblemCodeUnavailable},
			{NewDecodeError("metadata", fmt.Errorf("bad")), http.StatusUnprocessableEntity, ProblemCodeDecode},
			{&TransactionStateError{Op: "commit", State: "committed"}, http.StatusConflict, ProblemCodeTransactionState},
			{fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound, ProblemCodeNotFound},
			{fmt.Errorf("bad isbn: %w", ErrInvalidInput), http.StatusBadRequest, ProblemCodeInvalidInput},
			{fmt.Errorf("boom"), http.StatusInternalServerError, ProblemCodeInternal},
		}
		for _, tc := range cases {
			problem := ProblemFromError(tc.err)
			require.NotNil(t, problem)
			assert.Equal(t, tc.status, problem.Status, tc.err.Error())
			assert.Equal(t, tc.code, problem.Extras["code"], tc.err.Error())
		}
	})
	t.Run("Should return nil for nil error", func(t *testing.T) {
		assert.Nil(t, ProblemFromError(nil))
	})
}

func TestBuildProblemBody(t *testing.T) {
	t.Run("Should include code and filter reserved extras", func(t *testing.T) {
		problem := NormalizeProblem(&Problem{
			Status: http.StatusConflict,
			Detail: "duplicate isbn",
			Extras: map[string]any{"code": ProblemCodeConflict, "status": 999, "isbn": "1"},
		})
		body := BuildProblemBody(problem)
		assert.Equal(t, http.StatusConflict, body["status"])
		assert.Equal(t, "Conflict", body["error"])
		assert.Equal(t, "duplicate isbn", body["details"])
		assert.Equal(t, ProblemCodeConflict, body["code"])
		assert.Equal(t, "about:blank", body["type"])
		assert.Equal(t, "1", body["isbn"])
	})
}

func TestProblemFromErrorRedaction(t *testing.T) {
	t.Run("Should not leak connection credentials in details", func(t *testing.T) {
		err := fmt.Errorf("%w: dial postgres://app:secret@db/bookstore", ErrConnection)
		problem := ProblemFromError(err)
		assert.NotContains(t, problem.Detail, "secret")
		assert.Contains(t, problem.Detail, "[REDACTED]")
	})
}
