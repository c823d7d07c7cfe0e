package flows

import (
	"sync"

	"github.com/cpacia/iouledger/events"
	"github.com/google/uuid"
)

// Step is a state in a flow's state machine.
type Step string

const (
	StepQuery             Step = "Query"
	StepQueryIOU          Step = "QueryIOU"
	StepQueryWallet       Step = "QueryWallet"
	StepAuthorize         Step = "Authorize"
	StepGenerate          Step = "Generate"
	StepVerify            Step = "Verify"
	StepSign              Step = "Sign"
	StepCollectSignatures Step = "CollectCounterpartySignature"
	StepFinalize          Step = "Finalize"
	StepDone              Step = "Done"
	StepFailed            Step = "Failed"
	StepAwaitProposal     Step = "AwaitProposal"
	StepValidate          Step = "Validate"
	StepAwaitFinality     Step = "AwaitFinality"
)

// ProgressTracker records the current step of one flow instance and
// announces every transition on the bus.
type ProgressTracker struct {
	flowID string
	flow   string
	bus    events.Bus

	mtx   sync.RWMutex
	step  Step
	onEnd func()
}

// NewProgressTracker returns a tracker for a new instance of flow.
func NewProgressTracker(bus events.Bus, flow string) *ProgressTracker {
	return &ProgressTracker{
		flowID: uuid.New().String(),
		flow:   flow,
		bus:    bus,
	}
}

// Set moves the flow to step. Done and Failed are terminal.
func (p *ProgressTracker) Set(step Step) {
	p.mtx.Lock()
	p.step = step
	onEnd := p.onEnd
	if step == StepDone || step == StepFailed {
		p.onEnd = nil
	}
	p.mtx.Unlock()

	if onEnd != nil && (step == StepDone || step == StepFailed) {
		onEnd()
	}

	log.Debugf("%s %s: %s", p.flow, p.flowID, step)
	if p.bus != nil {
		p.bus.Emit(&events.FlowProgress{
			FlowID: p.flowID,
			Flow:   p.flow,
			Step:   string(step),
		})
	}
}

// Current returns the step the flow is in.
func (p *ProgressTracker) Current() Step {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.step
}

// FlowID returns the identifier of this flow instance.
func (p *ProgressTracker) FlowID() string {
	return p.flowID
}

// fail logs the failure at the current step and marks the flow failed.
func (p *ProgressTracker) fail(err error) error {
	log.Errorf("%s %s failed at %s: %s", p.flow, p.flowID, p.Current(), err)
	p.Set(StepFailed)
	return err
}
