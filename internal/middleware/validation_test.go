package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateCaseIDParam(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name       string
		caseID     string
		wantStatus int
	}{
		{"valid uuid", id.String(), http.StatusOK},
		{"uppercase uuid", strings.ToUpper(id.String()), http.StatusOK},
		{"not uuid", "case-123", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Params = gin.Params{{Key: "case_id", Value: tt.caseID}}

			ValidateCaseIDParam()(c)

			if tt.wantStatus == http.StatusOK {
				assert.False(t, c.IsAborted())
				got, ok := c.Get(CaseIDKey)
				assert.True(t, ok)
				assert.Equal(t, id, got)
			} else {
				assert.True(t, c.IsAborted())
				assert.Equal(t, tt.wantStatus, w.Code)
			}
		})
	}
}

func TestValidateJobIDParam(t *testing.T) {
	tests := []struct {
		name       string
		jobID      string
		wantStatus int
		want       int64
	}{
		{"valid", "42", http.StatusOK, 42},
		{"zero", "0", http.StatusBadRequest, 0},
		{"negative", "-1", http.StatusBadRequest, 0},
		{"not number", "abc", http.StatusBadRequest, 0},
		{"overflow", strings.Repeat("9", 30), http.StatusBadRequest, 0},
		{"empty", "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Params = gin.Params{{Key: "job_id", Value: tt.jobID}}

			ValidateJobIDParam()(c)

			if tt.wantStatus == http.StatusOK {
				assert.False(t, c.IsAborted())
				assert.Equal(t, tt.want, c.GetInt64(JobIDKey))
			} else {
				assert.True(t, c.IsAborted())
				assert.Equal(t, tt.wantStatus, w.Code)
			}
		})
	}
}

func TestValidateJobType(t *testing.T) {
	assert.True(t, ValidateJobType("execute_cleanup"))
	assert.True(t, ValidateJobType("post_room3_request"))
	assert.False(t, ValidateJobType(""))
	assert.False(t, ValidateJobType("Execute-Cleanup"))
	assert.False(t, ValidateJobType(strings.Repeat("a", 65)))
}

func TestValidateActor(t *testing.T) {
	assert.True(t, ValidateActor("@alice:example.org"))
	assert.False(t, ValidateActor(""))
	assert.False(t, ValidateActor("al ice"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello\n"))
	assert.Equal(t, "ab", SanitizeString("a\x00b\x7f"))
	assert.Equal(t, "你好 👍", SanitizeString(" 你好 👍 "))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/test", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPayloadSizeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 测试正常大小的请求
	t.Run("normal size", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, r := gin.CreateTestContext(w)
		r.Use(PayloadSizeLimit(1024))
		r.POST("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		body := bytes.NewBufferString("test")
		c.Request = httptest.NewRequest("POST", "/test", body)
		r.ServeHTTP(w, c.Request)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	// 测试超大请求
	t.Run("oversized", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, r := gin.CreateTestContext(w)
		r.Use(PayloadSizeLimit(10))
		r.POST("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		body := bytes.NewBufferString(strings.Repeat("a", 20))
		c.Request = httptest.NewRequest("POST", "/test", body)
		c.Request.ContentLength = 20
		r.ServeHTTP(w, c.Request)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("generate request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, r := gin.CreateTestContext(w)
		r.Use(RequestIDMiddleware())
		r.GET("/test", func(c *gin.Context) {
			requestID, exists := c.Get("request_id")
			assert.True(t, exists)
			assert.NotEmpty(t, requestID)
			c.String(http.StatusOK, "ok")
		})

		c.Request = httptest.NewRequest("GET", "/test", nil)
		r.ServeHTTP(w, c.Request)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("use existing request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, r := gin.CreateTestContext(w)
		r.Use(RequestIDMiddleware())
		r.GET("/test", func(c *gin.Context) {
			requestID, _ := c.Get("request_id")
			assert.Equal(t, "test-123", requestID)
			c.String(http.StatusOK, "ok")
		})

		c.Request = httptest.NewRequest("GET", "/test", nil)
		c.Request.Header.Set("X-Request-ID", "test-123")
		r.ServeHTTP(w, c.Request)

		assert.Equal(t, "test-123", w.Header().Get("X-Request-ID"))
	})
}
