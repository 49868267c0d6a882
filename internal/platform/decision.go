package platform

import "net/http"

// Outcome is what the pipeline does with a response.
type Outcome int

const (
	// PassThrough returns the response to the caller unchanged.
	PassThrough Outcome = iota
	// RetryOnce refreshes the access token and resends the request.
	RetryOnce
	// Fail ends the request with a terminal authentication error.
	Fail
)

func (o Outcome) String() string {
	switch o {
	case PassThrough:
		return "pass_through"
	case RetryOnce:
		return "retry_once"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decide classifies a response. attempt is 0 for the original send and 1 for
// the resend after a refresh. Exchange requests (login, register, refresh)
// never enter the refresh protocol.
func Decide(status, attempt int, exchange bool) Outcome {
	if status != http.StatusUnauthorized {
		return PassThrough
	}
	if exchange || attempt > 0 {
		return Fail
	}
	return RetryOnce
}
