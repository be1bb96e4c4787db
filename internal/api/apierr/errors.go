package apierr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mcoot/authservice/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes
const (
	CodeValidation               = "VALIDATION_ERROR"
	CodeParse                    = "PARSE_ERROR"
	CodeDuplicateIdentity        = "DUPLICATE_IDENTITY"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeNoToken                  = "NO_TOKEN"
	CodeTokenExpired             = "TOKEN_EXPIRED"
	CodeTokenInvalid             = "TOKEN_INVALID"
	CodeUserNotFound             = "USER_NOT_FOUND"
	CodeAccountDeactivated       = "ACCOUNT_DEACTIVATED"
	CodeNotFound                 = "NOT_FOUND"
	CodeCurrentPasswordIncorrect = "CURRENT_PASSWORD_INCORRECT"
	CodeMethodNotAllowed         = "METHOD_NOT_ALLOWED"
	CodeInternalError            = "INTERNAL_ERROR"
)

const internalMessage = "Internal server error"

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Writer renders errors as JSON envelopes. Server-side failures are logged
// in full and their detail is echoed to the client only in development.
type Writer struct {
	logger        *slog.Logger
	exposeDetails bool
}

// NewWriter creates an error writer
func NewWriter(logger *slog.Logger, exposeDetails bool) *Writer {
	return &Writer{logger: logger, exposeDetails: exposeDetails}
}

// Write writes an error response for err
func (ew *Writer) Write(w http.ResponseWriter, r *http.Request, err error) {
	he := toHTTPError(err)

	if he.status >= http.StatusInternalServerError {
		ew.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if ew.exposeDetails {
			he.apiError.Details = err.Error()
		}
	}

	writeJSON(w, he)
}

// Panic writes the generic 500 response for a recovered panic
func (ew *Writer) Panic(w http.ResponseWriter, _ *http.Request, recovered any) {
	he := &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: internalMessage}}
	if ew.exposeDetails {
		if err, ok := recovered.(error); ok {
			he.apiError.Details = err.Error()
		} else if s, ok := recovered.(string); ok {
			he.apiError.Details = s
		}
	}
	writeJSON(w, he)
}

// NotFound writes a 404 for unknown routes
func (ew *Writer) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, &httpError{http.StatusNotFound, APIError{Code: CodeNotFound, Message: "Route not found"}})
}

// MethodNotAllowed writes a 405 for known routes hit with the wrong method
func (ew *Writer) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, &httpError{http.StatusMethodNotAllowed, APIError{Code: CodeMethodNotAllowed, Message: "Method not allowed"}})
}

func writeJSON(w http.ResponseWriter, he *httpError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	kind := model.KindOf(err)

	var status int
	var code string
	switch kind {
	case model.KindValidation:
		status, code = http.StatusBadRequest, CodeValidation
	case model.KindParse:
		status, code = http.StatusBadRequest, CodeParse
	case model.KindDuplicateIdentity:
		status, code = http.StatusConflict, CodeDuplicateIdentity
	case model.KindInvalidCredentials:
		status, code = http.StatusUnauthorized, CodeInvalidCredentials
	case model.KindNoToken:
		status, code = http.StatusUnauthorized, CodeNoToken
	case model.KindTokenExpired:
		status, code = http.StatusUnauthorized, CodeTokenExpired
	case model.KindTokenInvalid:
		status, code = http.StatusUnauthorized, CodeTokenInvalid
	case model.KindUnknownAccount:
		status, code = http.StatusUnauthorized, CodeUserNotFound
	case model.KindAccountDeactivated:
		status, code = http.StatusForbidden, CodeAccountDeactivated
	case model.KindNotFound:
		status, code = http.StatusNotFound, CodeNotFound
	case model.KindCurrentPasswordIncorrect:
		status, code = http.StatusUnauthorized, CodeCurrentPasswordIncorrect
	default:
		// Persistence failures and anything unclassified
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: internalMessage}}
	}

	return &httpError{status, APIError{Code: code, Message: publicMessage(err)}}
}

// publicMessage returns the caller-safe message of the outermost *model.Error
func publicMessage(err error) string {
	var me *model.Error
	if errors.As(err, &me) {
		return me.Message
	}
	return internalMessage
}
