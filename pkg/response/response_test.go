package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/offertory/pkg/apperr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   APIResponseCode
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, APIResponseCodeBadRequest},
		{fmt.Errorf("%w: mismatch", apperr.ErrInvalidSignature), http.StatusBadRequest, APIResponseCodeBadRequest},
		{apperr.NotFound("fund", "f1"), http.StatusNotFound, APIResponseCodeNotFound},
		{&apperr.FeatureError{Key: "ticketing"}, http.StatusForbidden, APIResponseCodeForbidden},
		{fmt.Errorf("wrap: %w", &apperr.LimitError{Key: "members", Limit: 5}), http.StatusPreconditionFailed, APIResponseCodePreconditionFailed},
		{apperr.Gateway("PAYSTACK", errors.New("x")), http.StatusBadGateway, APIResponseCodeGateway},
		{errors.New("db down"), http.StatusInternalServerError, APIResponseCodeError},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestAbortWithError_CarriesLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	AbortWithError(c, &apperr.LimitError{Key: "members", Limit: 50, Current: 50})

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	var body APIResponse[ErrorDetail]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, APIResponseCodePreconditionFailed, body.Code)
	require.Equal(t, "members", body.Data.Key)
	require.NotNil(t, body.Data.Limit)
	require.EqualValues(t, 50, *body.Data.Limit)
}
