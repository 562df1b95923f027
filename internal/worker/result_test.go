package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azhengyongqin/caseflow/internal/casestate"
	"github.com/azhengyongqin/caseflow/internal/model"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeSuccess},
		{"generic", errors.New("boom"), OutcomeRetry},
		{"deadline", fmt.Errorf("post reply: %w", context.DeadlineExceeded), OutcomeRetry},
		{"illegal transition", casestate.AssertTransition(model.CaseStatusNew, model.CaseStatusCleaned), OutcomeFatal},
		{"permanent sentinel", fmt.Errorf("bad payload: %w", ErrPermanent), OutcomeFatal},
		{"permanent wrapper", Permanent(errors.New("bad payload")), OutcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := FromError(tt.err)
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.err, res.Err)
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	cause := errors.New("cause")
	err := Permanent(cause)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "cause", err.Error())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "retry", OutcomeRetry.String())
	assert.Equal(t, "fatal", OutcomeFatal.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
