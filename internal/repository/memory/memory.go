package memory

import (
	"time"

	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

var (
	_ repository.JobStore     = (*JobStore)(nil)
	_ repository.CaseStore    = (*CaseStore)(nil)
	_ repository.AuditStore   = (*AuditStore)(nil)
	_ repository.MessageStore = (*MessageStore)(nil)
)

// Stores 一组共享时钟的内存仓储
type Stores struct {
	Jobs     *JobStore
	Cases    *CaseStore
	Audit    *AuditStore
	Messages *MessageStore
}

// New 创建全部内存仓储
func New(policy backoff.Policy, now func() time.Time) *Stores {
	return &Stores{
		Jobs:     NewJobStore(policy, now),
		Cases:    NewCaseStore(now),
		Audit:    NewAuditStore(now),
		Messages: NewMessageStore(now),
	}
}
