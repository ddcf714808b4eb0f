package probe

import "github.com/hyp3rd/ewrap"

var (
	// ErrMalformedResponse indicates a 200 response whose body does not match
	// the spin response schema.
	ErrMalformedResponse = ewrap.New("malformed spin response")

	// ErrInvalidTarget indicates an endpoint URL the client cannot use.
	ErrInvalidTarget = ewrap.New("invalid spin target")

	// ErrInvalidBet indicates a non-positive wager.
	ErrInvalidBet = ewrap.New("bet amount must be positive")
)
