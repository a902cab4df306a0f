package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"code_duel/internal/app/notify"
	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the ONGOING -> COMPLETED transition of matches.
type Manager struct {
	db       *sql.DB
	matches  repository.MatchRepository
	profiles repository.ProfileRepository
	users    repository.UserRepository
	locker   Locker
	notifier notify.Notifier
	now      func() time.Time
}

// NewManager wires the manager. db may be nil when the repositories are in memory.
func NewManager(db *sql.DB, matches repository.MatchRepository, profiles repository.ProfileRepository,
	users repository.UserRepository, locker Locker, notifier notify.Notifier) *Manager {
	return &Manager{
		db:       db,
		matches:  matches,
		profiles: profiles,
		users:    users,
		locker:   locker,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create persists a new ONGOING match between p1 and p2.
func (m *Manager) Create(ctx context.Context, p1, p2 string, problem *model.Problem, timeLimit time.Duration) (*model.Match, error) {
	if p1 == "" || p2 == "" || p1 == p2 {
		return nil, fmt.Errorf("match needs two distinct players: %w", common.ErrValidation)
	}
	if problem == nil {
		return nil, fmt.Errorf("match needs a problem: %w", common.ErrValidation)
	}
	match := &model.Match{
		ID:               uuid.NewString(),
		Player1ID:        p1,
		Player2ID:        p2,
		ProblemID:        problem.ID,
		ProblemTitle:     problem.Title,
		Difficulty:       problem.Difficulty,
		Status:           model.MatchOngoing,
		TimeLimitSeconds: int(timeLimit / time.Second),
		StartTime:        m.now().UTC(),
	}
	if err := m.matches.Create(ctx, nil, match); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	logger.L().Info("match_created",
		zap.String("match_id", match.ID),
		zap.String("player1_id", p1),
		zap.String("player2_id", p2),
		zap.String("problem_id", problem.ID),
	)
	return match, nil
}

// DeclareWinner completes the match with winnerID. Concurrent calls for the same
// match are serialized and only the first one changes state; the rest get
// common.ErrMatchCompleted.
func (m *Manager) DeclareWinner(ctx context.Context, matchID, winnerID string) (*model.Match, error) {
	unlock, err := m.locker.Lock(ctx, "match:"+matchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	match, err := m.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load match %s: %w", matchID, err)
	}
	if match.Completed() {
		return match, common.ErrMatchCompleted
	}
	if !match.HasPlayer(winnerID) {
		return nil, common.ErrNotParticipant
	}

	match.Complete(winnerID, m.now().UTC())
	loserID := match.Opponent(winnerID)

	err = repository.RunInTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := m.matches.Complete(ctx, tx, match); err != nil {
			return err
		}
		if err := m.profiles.ApplyResult(ctx, tx, winnerID, model.WinnerRatingDelta, true); err != nil {
			return fmt.Errorf("winner profile: %w", err)
		}
		if err := m.profiles.ApplyResult(ctx, tx, loserID, model.LoserRatingDelta, false); err != nil {
			return fmt.Errorf("loser profile: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrMatchCompleted) {
			logger.L().Info("match_completed_elsewhere", zap.String("match_id", matchID))
			return nil, err
		}
		return nil, fmt.Errorf("complete match %s: %w", matchID, err)
	}

	logger.L().Info("match_completed",
		zap.String("match_id", matchID),
		zap.String("winner_id", winnerID),
		zap.String("loser_id", loserID),
	)

	result := notify.MatchResult{
		Type:       notify.TypeMatchResult,
		MatchID:    matchID,
		WinnerID:   winnerID,
		WinnerName: m.DisplayName(ctx, winnerID),
	}
	if err := m.notifier.Send(ctx, notify.MatchChannel(matchID), result); err != nil {
		logger.L().Error("match_result_notify_failed", zap.String("match_id", matchID), zap.Error(err))
	}
	return match, nil
}

// DisplayName returns the username, falling back to the id.
func (m *Manager) DisplayName(ctx context.Context, userID string) string {
	if u, err := m.users.FindByID(ctx, userID); err == nil && u.Username != "" {
		return u.Username
	}
	return userID
}
