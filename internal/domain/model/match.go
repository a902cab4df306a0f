package model

import "time"

type MatchStatus string

const (
	MatchOngoing   MatchStatus = "ONGOING"
	MatchCompleted MatchStatus = "COMPLETED"
)

// Fixed rating deltas applied when a match completes.
const (
	WinnerRatingDelta = 25
	LoserRatingDelta  = -15
)

const (
	ResultWin  = "WIN"
	ResultLoss = "LOSS"
)

// Match is one duel. Once Status is COMPLETED, WinnerID, EndTime and both
// rating deltas are set and never change.
type Match struct {
	ID                 string      `json:"id"`
	Player1ID          string      `json:"player1_id"`
	Player2ID          string      `json:"player2_id"`
	ProblemID          string      `json:"problem_id"`
	ProblemTitle       string      `json:"problem_title"`
	Difficulty         Difficulty  `json:"difficulty"`
	Status             MatchStatus `json:"status"`
	TimeLimitSeconds   int         `json:"time_limit_seconds"`
	StartTime          time.Time   `json:"start_time"`
	EndTime            *time.Time  `json:"end_time,omitempty"`
	WinnerID           *string     `json:"winner_id,omitempty"`
	Player1RatingDelta *int        `json:"player1_rating_delta,omitempty"`
	Player2RatingDelta *int        `json:"player2_rating_delta,omitempty"`
}

func (m *Match) HasPlayer(playerID string) bool {
	return playerID != "" && (m.Player1ID == playerID || m.Player2ID == playerID)
}

// Opponent returns the other player, or "" if playerID is not in the match.
func (m *Match) Opponent(playerID string) string {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

func (m *Match) Completed() bool { return m.Status == MatchCompleted }

// Complete records winnerID and the fixed deltas. It does not persist anything.
func (m *Match) Complete(winnerID string, at time.Time) {
	winner := winnerID
	win, loss := WinnerRatingDelta, LoserRatingDelta
	m.WinnerID = &winner
	m.EndTime = &at
	m.Status = MatchCompleted
	if winnerID == m.Player1ID {
		m.Player1RatingDelta, m.Player2RatingDelta = &win, &loss
	} else {
		m.Player1RatingDelta, m.Player2RatingDelta = &loss, &win
	}
}

// MatchHistoryEntry is a match seen from one player's side.
type MatchHistoryEntry struct {
	MatchID      string      `json:"match_id"`
	OpponentID   string      `json:"opponent_id"`
	OpponentName string      `json:"opponent_name"`
	ProblemID    string      `json:"problem_id"`
	ProblemTitle string      `json:"problem_title"`
	Status       MatchStatus `json:"status"`
	Result       string      `json:"result,omitempty"` // WIN or LOSS once completed
	RatingDelta  *int        `json:"rating_delta,omitempty"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      *time.Time  `json:"end_time,omitempty"`
}

// HistoryFor builds the entry for playerID. opponentName is resolved by the caller.
func (m *Match) HistoryFor(playerID, opponentName string) MatchHistoryEntry {
	entry := MatchHistoryEntry{
		MatchID:      m.ID,
		OpponentID:   m.Opponent(playerID),
		OpponentName: opponentName,
		ProblemID:    m.ProblemID,
		ProblemTitle: m.ProblemTitle,
		Status:       m.Status,
		StartTime:    m.StartTime,
		EndTime:      m.EndTime,
	}
	if m.Completed() && m.WinnerID != nil {
		entry.Result = ResultLoss
		if *m.WinnerID == playerID {
			entry.Result = ResultWin
		}
		if playerID == m.Player1ID {
			entry.RatingDelta = m.Player1RatingDelta
		} else {
			entry.RatingDelta = m.Player2RatingDelta
		}
	}
	return entry
}
