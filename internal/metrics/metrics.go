package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caseflow_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 作业指标
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"job_type"},
	)

	JobsClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_jobs_claimed_total",
			Help: "Total number of jobs claimed by workers",
		},
		[]string{"worker_id"},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_jobs_finished_total",
			Help: "Total number of job executions by outcome",
		},
		[]string{"job_type", "outcome"},
	)

	JobExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caseflow_job_execution_duration_seconds",
			Help:    "Job handler execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"job_type"},
	)

	JobsReconciledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflow_jobs_reconciled_total",
			Help: "Total number of running jobs reset to queued at boot",
		},
	)

	// 队列指标
	QueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "caseflow_queue_size",
			Help: "Number of jobs per status",
		},
		[]string{"status"},
	)

	// Worker 指标
	WorkerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "caseflow_worker_state",
			Help: "Current lifecycle state of the worker runtime (1 = active state)",
		},
		[]string{"worker_id", "state"},
	)

	WorkerInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "caseflow_worker_in_flight",
			Help: "Number of jobs currently being handled",
		},
		[]string{"worker_id"},
	)

	// 病例指标
	CaseTransitionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_case_transitions_rejected_total",
			Help: "Total number of illegal case status transitions attempted",
		},
		[]string{"from", "to"},
	)

	CleanupTriggerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_cleanup_trigger_total",
			Help: "Cleanup CAS trigger outcomes",
		},
		[]string{"outcome"},
	)

	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_signals_total",
			Help: "External signals by classification result",
		},
		[]string{"room", "reason"},
	)

	// 数据库连接池指标
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseflow_db_connections_in_use",
			Help: "Number of database connections in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseflow_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBConnectionsMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseflow_db_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 错误指标
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflow_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "type"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordJobEnqueued 记录入队
func RecordJobEnqueued(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

// RecordJobsClaimed 记录认领数量
func RecordJobsClaimed(workerID string, n int) {
	if n > 0 {
		JobsClaimedTotal.WithLabelValues(workerID).Add(float64(n))
	}
}

// RecordJobFinished 记录一次作业执行结果
func RecordJobFinished(jobType, outcome string, duration float64) {
	JobsFinishedTotal.WithLabelValues(jobType, outcome).Inc()
	if duration > 0 {
		JobExecutionDuration.WithLabelValues(jobType).Observe(duration)
	}
}

// RecordReconciled 记录启动时回收的作业数
func RecordReconciled(n int64) {
	if n > 0 {
		JobsReconciledTotal.Add(float64(n))
	}
}

// UpdateQueueSize 更新队列大小
func UpdateQueueSize(status string, size float64) {
	QueueSize.WithLabelValues(status).Set(size)
}

// SetWorkerState 将 worker 状态 gauge 切换到 state
func SetWorkerState(workerID, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		WorkerState.WithLabelValues(workerID, s).Set(v)
	}
}

// RecordGuardViolation 记录非法状态迁移
func RecordGuardViolation(from, to string) {
	CaseTransitionsRejectedTotal.WithLabelValues(from, to).Inc()
}

// RecordCleanupTrigger 记录 CAS 结果：won / lost
func RecordCleanupTrigger(outcome string) {
	CleanupTriggerTotal.WithLabelValues(outcome).Inc()
}

// RecordSignal 记录信号分类结果
func RecordSignal(room, reason string) {
	SignalsTotal.WithLabelValues(room, reason).Inc()
}

// UpdateDBPoolStats 更新数据库连接池统计
func UpdateDBPoolStats(inUse, idle, max int32) {
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
	DBConnectionsMax.Set(float64(max))
}

// RecordError 记录错误
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// statusClass 将 HTTP 状态码转为类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
