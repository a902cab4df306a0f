package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"code_duel/internal/domain/model"
)

// Notifier delivers a payload to everyone listening on channel.
type Notifier interface {
	Send(ctx context.Context, channel string, payload any) error
}

func UserChannel(userID string) string         { return "/topic/user/" + userID }
func RunResultChannel(userID string) string    { return UserChannel(userID) + "/run-result" }
func SubmitResultChannel(userID string) string { return UserChannel(userID) + "/submit-result" }
func MatchChannel(matchID string) string       { return "/topic/match/" + matchID }

// Message types carried in the "type" field of every payload.
const (
	TypeMatchFound   = "match.found"
	TypeMatchError   = "match.error"
	TypeMatchResult  = "match.result"
	TypeRunResult    = "match.run_result"
	TypeSubmitResult = "match.submit_result"
)

// Submission outcomes reported alongside an ACCEPTED verdict.
const (
	OutcomeWin              = "WIN"
	OutcomeAlreadyCompleted = "MATCH_ALREADY_COMPLETED"
)

type ProblemInfo struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  model.Difficulty  `json:"difficulty"`
	Constraints string            `json:"constraints,omitempty"`
	URL         string            `json:"url,omitempty"`
	StarterCode map[string]string `json:"starter_code,omitempty"`
	Examples    []model.Example   `json:"examples"`
	TestCases   []model.TestCase  `json:"test_cases"`
}

type MatchFound struct {
	Type             string      `json:"type"`
	MatchID          string      `json:"match_id"`
	Problem          ProblemInfo `json:"problem"`
	TimeLimitSeconds int         `json:"time_limit_seconds"`
	Player1ID        string      `json:"player1_id"`
	Player1Name      string      `json:"player1_name"`
	Player2ID        string      `json:"player2_id"`
	Player2Name      string      `json:"player2_name"`
	StartTime        time.Time   `json:"start_time"`
}

type MatchResult struct {
	Type       string `json:"type"`
	MatchID    string `json:"match_id"`
	WinnerID   string `json:"winner_id"`
	WinnerName string `json:"winner_name"`
}

type MatchError struct {
	Type       string           `json:"type"`
	Difficulty model.Difficulty `json:"difficulty"`
	Message    string           `json:"message"`
}

type VerdictMessage struct {
	Type         string         `json:"type"`
	MatchID      string         `json:"match_id"`
	SubmissionID string         `json:"submission_id,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
	Verdict      *model.Verdict `json:"verdict"`
}

// Envelope is the wire form of one delivery, used over WebSocket and Redis.
type Envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

func NewEnvelope(channel string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Channel: channel, Payload: raw}, nil
}

// Recorder keeps every delivery in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Envelope
}

func (r *Recorder) Send(_ context.Context, channel string, payload any) error {
	env, err := NewEnvelope(channel, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sent = append(r.sent, env)
	r.mu.Unlock()
	return nil
}

// On returns the payloads delivered to channel, in order.
func (r *Recorder) On(channel string) []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []json.RawMessage
	for _, env := range r.sent {
		if env.Channel == channel {
			out = append(out, env.Payload)
		}
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
