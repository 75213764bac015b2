package exam

// Event is an append-only audit row recorded alongside each attempt
// transition, in the same transaction.
type Event struct {
	Type     string // EventAttemptSubmitted, ...
	Key      string // natural key: attemptID
	DataJSON string
}

const (
	EventAttemptSubmitted = "AttemptSubmitted"
	EventAttemptGraded    = "AttemptGraded"
	EventScoreAmended     = "ScoreAmended"
)
