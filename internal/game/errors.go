package game

import (
	"errors"
	"fmt"
)

// Rejection reasons. A rejected request commits nothing, except
// ErrEliminatedForInsufficientFunds which commits the elimination.
var (
	ErrSessionClosed                  = errors.New("session is closed")
	ErrNotYourTurn                    = errors.New("not your turn")
	ErrIllegalDestination             = errors.New("destination is not adjacent")
	ErrWrongTransportForEdge          = errors.New("transport does not serve this edge")
	ErrNodeOccupiedByTracker          = errors.New("node is occupied by another tracker")
	ErrInsufficientFundsForFare       = errors.New("insufficient funds for fare")
	ErrInsufficientFundsForDoubleMove = errors.New("insufficient funds for double move")
	ErrEliminatedForInsufficientFunds = errors.New("eliminated for insufficient funds")
	ErrNotHiddenMover                 = errors.New("only the hidden mover may double move")
	ErrConflict                       = errors.New("session was modified concurrently")
)

// ErrIntegrity marks a session snapshot that violates the engine's invariants.
var ErrIntegrity = errors.New("session integrity violation")

// Rejection is a caller-visible refusal of a move.
type Rejection struct {
	Reason error
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.Error()
	}
	return r.Reason.Error() + ": " + r.Detail
}

func (r *Rejection) Unwrap() error {
	return r.Reason
}

// Reject builds a Rejection for reason with a formatted detail.
func Reject(reason error, format string, args ...any) error {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func integrity(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}

// IsRejection reports whether err is a rule rejection rather than a failure.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

var codes = []struct {
	err  error
	code string
}{
	{ErrSessionClosed, "SessionClosed"},
	{ErrNotYourTurn, "NotYourTurn"},
	{ErrIllegalDestination, "IllegalDestination"},
	{ErrWrongTransportForEdge, "WrongTransportForEdge"},
	{ErrNodeOccupiedByTracker, "NodeOccupiedByTracker"},
	{ErrInsufficientFundsForFare, "InsufficientFundsForFare"},
	{ErrInsufficientFundsForDoubleMove, "InsufficientFundsForDoubleMove"},
	{ErrEliminatedForInsufficientFunds, "EliminatedForInsufficientFunds"},
	{ErrNotHiddenMover, "NotHiddenMover"},
	{ErrConflict, "Conflict"},
	{ErrIntegrity, "IntegrityViolation"},
}

// Code returns the stable reason name for err, or "" when err is not a game error.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
