package memory_test

import (
	"testing"

	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
	"github.com/azhengyongqin/caseflow/internal/repository/storetest"
)

func newStores(t *testing.T) storetest.Stores {
	s := memory.New(backoff.DefaultPolicy(), nil)
	return storetest.Stores{Jobs: s.Jobs, Cases: s.Cases}
}

func TestJobStore(t *testing.T) {
	storetest.RunJobStore(t, newStores)
}

func TestCaseStore(t *testing.T) {
	storetest.RunCaseStore(t, newStores)
}
