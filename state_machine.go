package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_LIFECYCLE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_LIFECYCLE_STATE"
)

// Operation is the account operation a run performs.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// LifecycleState is a named step of an account operation.
type LifecycleState string

const (
	StatePending            LifecycleState = "pending"
	StateValidated          LifecycleState = "validated"
	StateSessionAcquired    LifecycleState = "session_acquired"
	StateIdentityCreated    LifecycleState = "identity_created"
	StateRecordPersisted    LifecycleState = "record_persisted"
	StateIdentityRolledBack LifecycleState = "identity_rolled_back"
	StateRollbackFailed     LifecycleState = "rollback_failed"
	StateRecordUpdated      LifecycleState = "record_updated"
	StateRecordDeleted      LifecycleState = "record_deleted"
	StateCleanedUp          LifecycleState = "cleaned_up"
	StateRejected           LifecycleState = "rejected"
	StateFailed             LifecycleState = "failed"
	StateCompleted          LifecycleState = "completed"
)

// IsTerminal reports whether no transition leaves s
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case StateRejected, StateFailed, StateCompleted:
		return true
	default:
		return false
	}
}

// CompensationAction names the undo step for a state.
type CompensationAction string

const (
	CompensateDeleteIdentity CompensationAction = "delete_identity"
)

// Compensation describes how to undo the side effect of a state and where
// the run goes depending on whether the undo worked.
type Compensation struct {
	Action    CompensationAction
	OnSuccess LifecycleState
	OnFailure LifecycleState
}

// Transition is one recorded state change.
type Transition struct {
	Operation Operation      `json:"operation"`
	From      LifecycleState `json:"from"`
	To        LifecycleState `json:"to"`
	At        time.Time      `json:"at"`
}

// TransitionHook observes transitions after they are recorded.
type TransitionHook func(ctx context.Context, t Transition) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*LifecycleMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *LifecycleMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineLogger overrides the logger used for hook failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *LifecycleMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionHook adds a hook executed after every transition.
func WithTransitionHook(h TransitionHook) StateMachineOption {
	return func(sm *LifecycleMachine) {
		if h != nil {
			sm.hooks = append(sm.hooks, h)
		}
	}
}

// LifecycleMachine holds the transition graph of every operation and the
// compensation table.
type LifecycleMachine struct {
	transitions   map[Operation]map[LifecycleState]map[LifecycleState]struct{}
	compensations map[LifecycleState]Compensation
	now           func() time.Time
	hooks         []TransitionHook
	logger        Logger
}

// NewLifecycleMachine returns the account lifecycle graph.
func NewLifecycleMachine(opts ...StateMachineOption) *LifecycleMachine {
	sm := &LifecycleMachine{
		transitions: map[Operation]map[LifecycleState]map[LifecycleState]struct{}{
			OperationCreate: {
				StatePending: {
					StateValidated: {},
					StateRejected:  {},
				},
				StateValidated: {
					StateSessionAcquired: {},
					StateFailed:          {},
				},
				StateSessionAcquired: {
					StateIdentityCreated: {},
					StateCleanedUp:       {},
				},
				StateIdentityCreated: {
					StateRecordPersisted:    {},
					StateIdentityRolledBack: {},
					StateRollbackFailed:     {},
					StateCleanedUp:          {},
				},
				StateRecordPersisted: {
					StateCleanedUp: {},
				},
				StateIdentityRolledBack: {
					StateCleanedUp: {},
				},
				StateRollbackFailed: {
					StateCleanedUp: {},
				},
				StateCleanedUp: {
					StateCompleted: {},
					StateFailed:    {},
				},
			},
			OperationUpdate: {
				StatePending: {
					StateValidated: {},
					StateRejected:  {},
				},
				StateValidated: {
					StateRecordUpdated: {},
					StateFailed:        {},
				},
				StateRecordUpdated: {
					StateCompleted: {},
				},
			},
			OperationDelete: {
				StatePending: {
					StateValidated: {},
					StateRejected:  {},
				},
				StateValidated: {
					StateRecordDeleted: {},
					StateFailed:        {},
				},
				StateRecordDeleted: {
					StateCompleted: {},
				},
			},
		},
		compensations: map[LifecycleState]Compensation{
			StateIdentityCreated: {
				Action:    CompensateDeleteIdentity,
				OnSuccess: StateIdentityRolledBack,
				OnFailure: StateRollbackFailed,
			},
		},
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// CanTransition reports whether op allows from -> to.
func (sm *LifecycleMachine) CanTransition(op Operation, from, to LifecycleState) bool {
	graph, ok := sm.transitions[op]
	if !ok {
		return false
	}
	targets, ok := graph[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// CompensationFor returns the undo step registered for state.
func (sm *LifecycleMachine) CompensationFor(state LifecycleState) (Compensation, bool) {
	c, ok := sm.compensations[state]
	return c, ok
}

// Start begins a run of op in StatePending.
func (sm *LifecycleMachine) Start(op Operation) *Run {
	return &Run{machine: sm, operation: op, state: StatePending}
}

// Run is a single execution of an operation through the graph.
type Run struct {
	machine   *LifecycleMachine
	operation Operation

	mu    sync.Mutex
	state LifecycleState
	trail []Transition
}

// Operation returns the operation of the run
func (r *Run) Operation() Operation {
	return r.operation
}

// State returns the current state
func (r *Run) State() LifecycleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Trail returns every transition taken so far, oldest first.
func (r *Run) Trail() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.trail))
	copy(out, r.trail)
	return out
}

// States returns the visited states, starting with StatePending.
func (r *Run) States() []LifecycleState {
	trail := r.Trail()
	out := make([]LifecycleState, 0, len(trail)+1)
	out = append(out, StatePending)
	for _, t := range trail {
		out = append(out, t.To)
	}
	return out
}

// Transition moves the run to target.
func (r *Run) Transition(ctx context.Context, target LifecycleState) error {
	r.mu.Lock()
	from := r.state

	if from.IsTerminal() {
		r.mu.Unlock()
		return goerrors.New("lifecycle state is terminal", goerrors.CategoryConflict).
			WithTextCode(textCodeTerminalState).
			WithCode(goerrors.CodeConflict).
			WithMetadata(map[string]any{
				"operation": r.operation,
				"from":      from,
				"to":        target,
			})
	}

	if !r.machine.CanTransition(r.operation, from, target) {
		r.mu.Unlock()
		return goerrors.New("invalid lifecycle transition", goerrors.CategoryValidation).
			WithTextCode(textCodeInvalidTransition).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"operation": r.operation,
				"from":      from,
				"to":        target,
			})
	}

	t := Transition{
		Operation: r.operation,
		From:      from,
		To:        target,
		At:        r.machine.now(),
	}
	r.state = target
	r.trail = append(r.trail, t)
	r.mu.Unlock()

	r.machine.runHooks(ctx, t)
	return nil
}

func (sm *LifecycleMachine) runHooks(ctx context.Context, t Transition) {
	for _, hook := range sm.hooks {
		if err := hook(ctx, t); err != nil {
			sm.logger.Error("transition hook %s -> %s failed: %v", t.From, t.To, err)
		}
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("%s: %s -> %s", t.Operation, t.From, t.To)
}
