package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/offertory/pkg/apperr"
)

type APIResponseCode int

const (
	APIResponseCodeOK                 APIResponseCode = 0
	APIResponseCodeBadRequest         APIResponseCode = 40000
	APIResponseCodeForbidden          APIResponseCode = 40300
	APIResponseCodeNotFound           APIResponseCode = 40400
	APIResponseCodePreconditionFailed APIResponseCode = 41200
	APIResponseCodeError              APIResponseCode = 50000
	APIResponseCodeGateway            APIResponseCode = 50200
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:                 "ok",
	APIResponseCodeBadRequest:         "bad request",
	APIResponseCodeForbidden:          "forbidden",
	APIResponseCodeNotFound:           "not found",
	APIResponseCodePreconditionFailed: "precondition failed",
	APIResponseCodeError:              "unexpected error",
	APIResponseCodeGateway:            "payment provider error",
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// ErrorDetail is the data payload of every error envelope.
type ErrorDetail struct {
	Error string `json:"error"`
	Key   string `json:"key,omitempty"`
	Limit *int64 `json:"limit,omitempty"`
}

// Classify maps an error from the service layer to an HTTP status and
// envelope code.
func Classify(err error) (int, APIResponseCode) {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidSignature):
		return http.StatusBadRequest, APIResponseCodeBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, APIResponseCodeNotFound
	case errors.Is(err, apperr.ErrFeatureDisabled):
		return http.StatusForbidden, APIResponseCodeForbidden
	case errors.Is(err, apperr.ErrLimitExceeded):
		return http.StatusPreconditionFailed, APIResponseCodePreconditionFailed
	case errors.Is(err, apperr.ErrGateway):
		return http.StatusBadGateway, APIResponseCodeGateway
	default:
		return http.StatusInternalServerError, APIResponseCodeError
	}
}

// AbortWithError writes the error envelope for err and aborts the chain.
func AbortWithError(c *gin.Context, err error) {
	status, code := Classify(err)
	detail := &ErrorDetail{Error: err.Error()}
	var lim *apperr.LimitError
	if errors.As(err, &lim) {
		detail.Key = lim.Key
		detail.Limit = &lim.Limit
	}
	var feat *apperr.FeatureError
	if errors.As(err, &feat) {
		detail.Key = feat.Key
	}
	c.AbortWithStatusJSON(status, ErrorT(code, detail))
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorT(APIResponseCodeBadRequest, &ErrorDetail{Error: msg}))
}
