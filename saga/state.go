package saga

import (
	"errors"
	"strings"

	"github.com/goliatone/go-shopify-provisioner/core"
)

// runState accumulates one run. Transitions only move forward and Failed is
// terminal.
type runState struct {
	result  core.SagaResult
	partial core.PartialIDs
}

func (r *runState) advance(state core.SagaState) {
	r.result.Transitions = append(r.result.Transitions, state)
}

func (r *runState) fail(step core.StepName, err error) core.SagaResult {
	r.result.OK = false
	r.result.FailedStep = step
	r.result.PartialIDs = r.partial
	r.result.Err = err

	var stepErr *core.StepError
	if errors.As(err, &stepErr) && len(stepErr.UserErrors) > 0 {
		r.result.UserErrors = append([]core.UserError(nil), stepErr.UserErrors...)
	}
	if mapped := core.MapError(err); mapped != nil {
		r.result.Message = strings.TrimSpace(mapped.Message)
	}
	if r.result.Message == "" && err != nil {
		r.result.Message = err.Error()
	}
	r.advance(core.SagaStateFailed)
	return r.result
}

func (r *runState) succeed(created core.ProductCreatePayload, stepsCompleted string) core.SagaResult {
	r.result.OK = true
	r.result.ProductID = created.ProductID
	r.result.VariantID = created.VariantID
	r.result.InventoryItemID = created.InventoryItemID
	r.result.StepsCompleted = stepsCompleted
	r.advance(core.SagaStateDone)
	return r.result
}
