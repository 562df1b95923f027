package model

// JobStatus 作业状态枚举（jobs.status 列的取值）。
// 约定：
// - queued: 等待被 worker 认领（run_after 到期后可认领）
// - running: 已被某个 worker 认领，正在处理
// - done: 处理成功
// - failed: 历史兼容状态，当前流程不再写入
// - dead: 超过最大重试次数或被判定为不可恢复失败
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
	JobStatusDead    JobStatus = "dead"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusDone, JobStatusFailed, JobStatusDead:
		return true
	default:
		return false
	}
}

// Active 是否仍处于活跃状态（排队或运行中）
func (s JobStatus) Active() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// AllJobStatuses 返回全部作业状态（用于指标与筛选）
func AllJobStatuses() []JobStatus {
	return []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusDone, JobStatusFailed, JobStatusDead}
}
