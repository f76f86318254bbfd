package session

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors for callers that map them to responses
type Kind string

const (
	KindSetup       Kind = "setup"       // session could not start; stays in setup
	KindState       Kind = "state"       // action not allowed in the current state
	KindNotFound    Kind = "not_found"   // unknown session
	KindExecution   Kind = "execution"   // no strategy could run the program
	KindDiscarded   Kind = "discarded"   // execution outlived its question or session
	KindPersistence Kind = "persistence" // store write failed; surfaced as a warning
)

var (
	ErrInvalidConfig     = errors.New("invalid session config")
	ErrNoQuestions       = errors.New("no questions available for the selected topic and difficulty")
	ErrNotStarted        = errors.New("session has not started")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrSessionFinished   = errors.New("session has finished")
	ErrSessionPaused     = errors.New("session is paused")
	ErrExecutionInFlight = errors.New("an execution is already running for this session")
	ErrAlreadySubmitted  = errors.New("question already submitted")
	ErrNotSubmitted      = errors.New("current question has not been submitted")
	ErrNoMoreQuestions   = errors.New("no more questions")
	ErrNoMoreHints       = errors.New("no more hints")
	ErrNoSolution        = errors.New("no reference solution available")
	ErrResultDiscarded   = errors.New("execution result discarded")
	ErrSessionNotFound   = errors.New("session not found")
)

// Error is returned by every engine operation
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err is not an engine error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
