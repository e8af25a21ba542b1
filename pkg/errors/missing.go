package errors

// Constructor errors, raised when a component is built without one of its
// required collaborators. Wrap them with NewError.

type ErrMissingTaskStore struct{}

func (ErrMissingTaskStore) Error() string { return "missing task store" }

type ErrMissingWorker struct{}

func (ErrMissingWorker) Error() string { return "missing worker" }

type ErrMissingAgentCard struct{}

func (ErrMissingAgentCard) Error() string { return "missing agent card" }
