package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// MaxPayloadSize 最大请求体大小（2MB）
	MaxPayloadSize = 2 * 1024 * 1024
)

// 路径参数解析结果在 gin 上下文中的 key
const (
	CaseIDKey = "case_id"
	JobIDKey  = "job_id"
)

var (
	// JobTypeRegex 作业类型（小写字母数字下划线，1-64字符）
	JobTypeRegex = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

	// ActorRegex 信号发起方（可打印字符，不含空白，1-255字符）
	ActorRegex = regexp.MustCompile(`^\S{1,255}$`)
)

// PayloadSizeLimit 请求体大小限制中间件
func PayloadSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "请求体过大，最大允许 2MB",
			})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// ValidateJobType 验证作业类型
func ValidateJobType(jobType string) bool {
	return JobTypeRegex.MatchString(jobType)
}

// ValidateActor 验证信号发起方
func ValidateActor(actor string) bool {
	return ActorRegex.MatchString(actor)
}

// SanitizeString 去除首尾空白与控制字符
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)

	var builder strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// ValidateCaseIDParam Gin 中间件：验证路径参数中的 case_id（UUID）
func ValidateCaseIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param("case_id")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "case_id 参数缺失"})
			return
		}

		caseID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "case_id 格式无效，必须是 UUID"})
			return
		}

		c.Set(CaseIDKey, caseID)
		c.Next()
	}
}

// ValidateJobIDParam Gin 中间件：验证路径参数中的 job_id（正整数）
func ValidateJobIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param("job_id")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "job_id 参数缺失"})
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "job_id 格式无效，必须是正整数"})
			return
		}

		c.Set(JobIDKey, id)
		c.Next()
	}
}

// CORSMiddleware CORS 中间件（内部系统可选）
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
