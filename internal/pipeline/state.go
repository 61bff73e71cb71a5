package pipeline

// Status tracks how far a question has progressed. Transitions are strictly
// forward; a failed run keeps whatever fields were filled before the failure.
type Status string

const (
	StatusStarted  Status = "started"
	StatusExpanded Status = "expanded"
	StatusQueried  Status = "queried"
	StatusExecuted Status = "executed"
	StatusAnswered Status = "answered"
	StatusFailed   Status = "failed"
)

// State is the shared record the four stages read and write. Each stage
// fills exactly one field beyond what its predecessors wrote.
type State struct {
	Question         string
	ExpandedQuestion string
	Query            string
	Result           string
	Answer           string
	Status           Status
}

func NewState(question string) State {
	return State{Question: question, Status: StatusStarted}
}
