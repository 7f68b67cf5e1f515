package response

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/json"
)

func record(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestOK(t *testing.T) {
	w, resp := record(func(c *gin.Context) { OK(c, map[string]int{"count": 2}) })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, errors.OK.Code, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.NotZero(t, resp.Timestamp)
}

func TestFailUsesErrnoStatus(t *testing.T) {
	w, resp := record(func(c *gin.Context) {
		Fail(c, errors.ErrSessionNotFound.WithMessage("session abc not found"))
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrSessionNotFound.Code, resp.Code)
	assert.Nil(t, resp.Data)
}

func TestFailPlainErrorIsInternal(t *testing.T) {
	w, resp := record(func(c *gin.Context) { Fail(c, stderrors.New("boom")) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrInternal.Code, resp.Code)
}

func TestFailWithData(t *testing.T) {
	w, resp := record(func(c *gin.Context) {
		FailWithData(c, errors.ErrIndexUnbuilt, map[string]string{"status": "initializing"})
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "initializing"}, resp.Data)
}
