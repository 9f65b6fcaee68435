package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"unirun/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailMapsKindToStatus(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid input", apperr.InvalidInput("缺少必填字段：category"), http.StatusBadRequest, "缺少必填字段：category"},
		{"invalid transition", apperr.InvalidTransition("订单状态不正确"), http.StatusBadRequest, "订单状态不正确"},
		{"unauthorized", apperr.Unauthorized("账号或密码错误"), http.StatusUnauthorized, "账号或密码错误"},
		{"forbidden", apperr.Forbidden("无权操作"), http.StatusForbidden, "无权操作"},
		{"not found", apperr.NotFound("订单不存在"), http.StatusNotFound, "订单不存在"},
		{"conflict", apperr.Conflict("该学号已注册"), http.StatusConflict, "该学号已注册"},
		{"internal", errors.New("sql: connection is already closed"), http.StatusInternalServerError, "服务器内部错误"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Fail(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.message, resp.Message)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, gin.H{"order_id": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["code"])
	assert.Equal(t, "success", resp["message"])
	assert.Equal(t, float64(1), resp["data"].(map[string]interface{})["order_id"])
}
