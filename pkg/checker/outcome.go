package checker

import "context"

// OutcomeKind tells whether a validator asserted one condition or several.
type OutcomeKind int

const (
	OutcomeSingle OutcomeKind = iota
	OutcomeMulti
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSingle:
		return "single"
	case OutcomeMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// Outcome is the verdict of a validator. Build it with Single or Multi.
type Outcome struct {
	kind       OutcomeKind
	assertions []bool
}

// Single is the outcome of a validator asserting one condition.
func Single(ok bool) Outcome {
	return Outcome{kind: OutcomeSingle, assertions: []bool{ok}}
}

// Multi is the outcome of a validator asserting independent conditions. Each element
// counts as its own pass or fail.
func Multi(oks ...bool) Outcome {
	assertions := make([]bool, len(oks))
	copy(assertions, oks)
	return Outcome{kind: OutcomeMulti, assertions: assertions}
}

func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// Assertions returns a copy of the individual assertion results.
func (o Outcome) Assertions() []bool {
	out := make([]bool, len(o.assertions))
	copy(out, o.assertions)
	return out
}

// Counts returns how many assertions passed and failed.
func (o Outcome) Counts() (passed, failed int) {
	for _, ok := range o.assertions {
		if ok {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Operation produces the value a check validates. It may block and may fail.
type Operation func(ctx context.Context) (any, error)

// Validator judges an operation's result.
type Validator interface {
	Evaluate(result any) Outcome
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(result any) Outcome

func (f ValidatorFunc) Evaluate(result any) Outcome {
	return f(result)
}

// FailureKind classifies why a check failed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureAssertion FailureKind = "assertion"
	FailureOperation FailureKind = "operation"
	FailureTimedOut  FailureKind = "timed_out"
)
