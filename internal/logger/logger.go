package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// L 全局 logger
	L zerolog.Logger
)

// Init 初始化日志器
func Init(production bool) error {
	return InitWithWriter(production, os.Stdout)
}

// InitWithWriter 初始化日志器并输出到指定 writer（测试中可传入 bytes.Buffer）
func InitWithWriter(production bool, out io.Writer) error {
	// 设置时间格式
	zerolog.TimeFieldFormat = time.RFC3339

	if production {
		// 生产环境：JSON 格式输出
		L = zerolog.New(out).
			With().
			Timestamp().
			Caller().
			Logger()
	} else {
		// 开发环境：控制台友好格式
		output := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			// 自定义字段输出顺序：作业上下文在前，HTTP 请求字段在后
			FieldsOrder: []string{
				"worker_id",     // 1. Worker ID
				"job_id",        // 2. 作业 ID
				"job_type",      // 3. 作业类型
				"case_id",       // 4. 病例 ID
				"request_id",    // 5. 请求 ID
				"method",        // 6. HTTP 方法
				"path",          // 7. 请求路径
				"status",        // 8. 状态码
				"duration(ms)",  // 9. 耗时
				"response_size", // 10. 响应大小
				"client_ip",     // 11. 客户端 IP
				"errors",        // 12. 错误信息
			},
		}
		L = zerolog.New(output).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	// 设置全局日志级别
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}

// Sync zerolog 不需要显式 sync，保留接口兼容性
func Sync() {
	// zerolog 不需要显式 sync
}

// SetLevel 设置日志级别
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// WithRequestID 添加 request_id
func WithRequestID(requestID string) zerolog.Logger {
	return L.With().Str("request_id", requestID).Logger()
}

// WithWorkerID 添加 worker_id
func WithWorkerID(workerID string) zerolog.Logger {
	return L.With().Str("worker_id", workerID).Logger()
}

// WithJob 添加 job_id 与 job_type
func WithJob(base zerolog.Logger, jobID int64, jobType string) zerolog.Logger {
	return base.With().Int64("job_id", jobID).Str("job_type", jobType).Logger()
}

// WithCaseID 添加 case_id
func WithCaseID(caseID string) zerolog.Logger {
	return L.With().Str("case_id", caseID).Logger()
}

// Debug 输出 debug 级别日志
func Debug() *zerolog.Event {
	return L.Debug()
}

// Info 输出 info 级别日志
func Info() *zerolog.Event {
	return L.Info()
}

// Warn 输出 warn 级别日志
func Warn() *zerolog.Event {
	return L.Warn()
}

// Error 输出 error 级别日志
func Error() *zerolog.Event {
	return L.Error()
}

// Fatal 输出 fatal 级别日志并退出
func Fatal() *zerolog.Event {
	return L.Fatal()
}
