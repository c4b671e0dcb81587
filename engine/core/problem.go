package core

import (
	"errors"
	"net/http"
)

// Problem captures the information returned in an RFC 7807 error response.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Extras   map[string]any
}

// Problem codes exposed to API clients.
const (
	ProblemCodeInvalidInput     = "invalid_input"
	ProblemCodeNotFound         = "not_found"
	ProblemCodeConflict         = "conflict"
	ProblemCodeDecode           = "decode_error"
	ProblemCodeTransactionState = "transaction_state"
	ProblemCodeUnavailable      = "store_unavailable"
	ProblemCodeInternal         = "internal_error"
)

// NormalizeProblem ensures the provided problem includes canonical defaults.
func NormalizeProblem(problem *Problem) *Problem {
	if problem == nil {
		problem = &Problem{}
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	if problem.Type == "" {
		problem.Type = "about:blank"
	}
	return problem
}

// BuildProblemBody assembles the serialized representation of the problem.
func BuildProblemBody(problem *Problem) map[string]any {
	body := map[string]any{
		"status": problem.Status,
		"error":  problem.Title,
	}
	if problem.Detail != "" {
		body["details"] = problem.Detail
	}
	if code, ok := problem.Extras["code"]; ok {
		body["code"] = code
	}
	if problem.Type != "" {
		body["type"] = problem.Type
	}
	if problem.Instance != "" {
		body["instance"] = problem.Instance
	}
	for key, value := range problem.Extras {
		if !isReservedProblemKey(key) {
			body[key] = value
		}
	}
	return body
}

// ProblemFromError translates the data-access error taxonomy into a problem.
func ProblemFromError(err error) *Problem {
	status, code := http.StatusInternalServerError, ProblemCodeInternal
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidInput):
		status, code = http.StatusBadRequest, ProblemCodeInvalidInput
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, ProblemCodeNotFound
	case errors.Is(err, ErrConstraintViolation):
		status, code = http.StatusConflict, ProblemCodeConflict
	case errors.Is(err, ErrTransactionState):
		status, code = http.StatusConflict, ProblemCodeTransactionState
	case errors.Is(err, ErrDecode):
		status, code = http.StatusUnprocessableEntity, ProblemCodeDecode
	case errors.Is(err, ErrConnection):
		status, code = http.StatusServiceUnavailable, ProblemCodeUnavailable
	}
	return &Problem{
		Status: status,
		Title:  http.StatusText(status),
		Detail: RedactError(err),
		Extras: map[string]any{"code": code},
	}
}

func isReservedProblemKey(key string) bool {
	switch key {
	case "status", "error", "details", "code", "type", "instance":
		return true
	default:
		return false
	}
}
