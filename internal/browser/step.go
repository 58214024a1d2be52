package browser

// StepOutcome classifies one page interaction explicitly, instead of
// overloading a timeout error to mean both "optional control absent" and
// "page broken".
type StepOutcome int

const (
	StepCompleted StepOutcome = iota
	StepNotPresent
	StepFailed
)

func (o StepOutcome) String() string {
	switch o {
	case StepCompleted:
		return "completed"
	case StepNotPresent:
		return "not-present"
	case StepFailed:
		return "failed"
	}
	return "unknown"
}

type StepResult struct {
	Outcome StepOutcome
	Err     error
}

func completed() StepResult       { return StepResult{Outcome: StepCompleted} }
func notPresent() StepResult      { return StepResult{Outcome: StepNotPresent} }
func failed(err error) StepResult { return StepResult{Outcome: StepFailed, Err: err} }
