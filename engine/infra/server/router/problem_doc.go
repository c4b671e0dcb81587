package router

// ProblemDocument models an RFC 7807 error envelope for API responses.
type ProblemDocument struct {
	Type     string `json:"type,omitempty"`
	Error    string `json:"error"`
	Status   int    `json:"status"`
	Details  string `json:"details,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
}

// Response is the success envelope shared by every handler.
type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
}
