package pipeline

import "errors"

// Collaborator sentinels. Stages wrap turn-aborting failures with one
// of these so the spoken apology can name what actually broke; the
// full error chain goes to the log.
var (
	errCatalogUnavailable = errors.New("catalog unavailable")
	errOracleUnavailable  = errors.New("oracle unavailable")
	errSearchUnavailable  = errors.New("search unavailable")
)

// apologyFor picks the excuse matching the failed collaborator.
// Anything untagged came from a hub round trip.
func apologyFor(err error) string {
	switch {
	case errors.Is(err, errCatalogUnavailable):
		return "Sorry, I couldn't check your devices just now. Want me to try again?"
	case errors.Is(err, errOracleUnavailable):
		return "Sorry, I'm having trouble thinking straight right now. Want me to try again?"
	case errors.Is(err, errSearchUnavailable):
		return "Sorry, the web search isn't working just now. Want me to try again?"
	default:
		return "Sorry, I couldn't reach the hub just now. Want me to try again?"
	}
}
