package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"code_duel/internal/app/catalog"
	"code_duel/internal/app/judge"
	"code_duel/internal/app/lifecycle"
	"code_duel/internal/app/matchmaking"
	"code_duel/internal/app/notify"
	"code_duel/internal/app/worker"
	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DuelConfig struct {
	TimeLimit     time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// DuelService turns queue pairings into matches and judges run and submit
// requests for them. Judging always happens on the worker pool.
type DuelService struct {
	queue       *matchmaking.Queue
	matches     repository.MatchRepository
	submissions repository.SubmissionRepository
	problems    catalog.Provider
	lifecycle   *lifecycle.Manager
	evaluator   *judge.Evaluator
	notifier    notify.Notifier
	pool        *worker.Pool
	cfg         DuelConfig
}

func NewDuelService(
	matches repository.MatchRepository,
	submissions repository.SubmissionRepository,
	problems catalog.Provider,
	lc *lifecycle.Manager,
	evaluator *judge.Evaluator,
	notifier notify.Notifier,
	pool *worker.Pool,
	cfg DuelConfig,
) *DuelService {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	s := &DuelService{
		matches:     matches,
		submissions: submissions,
		problems:    problems,
		lifecycle:   lc,
		evaluator:   evaluator,
		notifier:    notifier,
		pool:        pool,
		cfg:         cfg,
	}
	s.queue = matchmaking.NewQueue(s.onPair)
	return s
}

// JoinQueue puts the player in the difficulty bucket. A blank difficulty means EASY.
func (s *DuelService) JoinQueue(_ context.Context, playerID, difficulty string) error {
	if playerID == "" {
		return common.Errorf("player id is required: %w", common.ErrBadRequest)
	}
	d := model.ParseDifficulty(difficulty, model.DifficultyEasy)
	s.queue.Join(playerID, d)
	logger.L().Info("queue_joined", zap.String("player_id", playerID), zap.String("difficulty", string(d)))
	return nil
}

func (s *DuelService) LeaveQueue(_ context.Context, playerID string) error {
	s.queue.Leave(playerID)
	logger.L().Info("queue_left", zap.String("player_id", playerID))
	return nil
}

// QueuePosition reports the bucket the player waits in.
func (s *DuelService) QueuePosition(playerID string) (model.Difficulty, bool) {
	return s.queue.Position(playerID)
}

// onPair runs under Join; the slow part goes to the pool.
func (s *DuelService) onPair(p matchmaking.Pairing) {
	err := s.pool.Submit(func(ctx context.Context) { s.startMatch(ctx, p) })
	if err != nil {
		logger.L().Error("pairing_dropped",
			zap.String("player1_id", p.Player1),
			zap.String("player2_id", p.Player2),
			zap.Error(err),
		)
		s.pairingFailed(context.Background(), p, "Matchmaking is shutting down")
	}
}

func (s *DuelService) startMatch(ctx context.Context, p matchmaking.Pairing) {
	if ctx.Err() != nil {
		logger.L().Warn("pairing_cancelled", zap.String("player1_id", p.Player1), zap.String("player2_id", p.Player2))
		s.pairingFailed(context.Background(), p, "Matchmaking is shutting down")
		return
	}
	problem, cases, err := s.pickProblem(ctx, p.Difficulty)
	if err != nil {
		logger.L().Error("pairing_no_problem",
			zap.String("difficulty", string(p.Difficulty)),
			zap.String("player1_id", p.Player1),
			zap.String("player2_id", p.Player2),
			zap.Error(err),
		)
		s.pairingFailed(context.WithoutCancel(ctx), p, "No problem available for "+string(p.Difficulty))
		return
	}

	match, err := s.lifecycle.Create(ctx, p.Player1, p.Player2, problem, s.cfg.TimeLimit)
	if err != nil {
		logger.L().Error("pairing_create_match_failed", zap.Error(err))
		s.pairingFailed(context.WithoutCancel(ctx), p, "Could not create match")
		return
	}

	found := notify.MatchFound{
		Type:    notify.TypeMatchFound,
		MatchID: match.ID,
		Problem: notify.ProblemInfo{
			ID:          problem.ID,
			Title:       problem.Title,
			Description: problem.Description,
			Difficulty:  problem.Difficulty,
			Constraints: problem.Constraints,
			URL:         problem.URL,
			StarterCode: problem.StarterCode,
			Examples:    problem.Examples,
			TestCases:   cases,
		},
		TimeLimitSeconds: match.TimeLimitSeconds,
		Player1ID:        match.Player1ID,
		Player1Name:      s.lifecycle.DisplayName(ctx, match.Player1ID),
		Player2ID:        match.Player2ID,
		Player2Name:      s.lifecycle.DisplayName(ctx, match.Player2ID),
		StartTime:        match.StartTime,
	}
	for _, player := range []string{match.Player1ID, match.Player2ID} {
		if err := s.notifier.Send(ctx, notify.UserChannel(player), found); err != nil {
			logger.L().Error("match_found_notify_failed", zap.String("match_id", match.ID), zap.String("player_id", player), zap.Error(err))
		}
	}
}

// pickProblem asks the provider up to RetryAttempts times, doubling the wait each time.
func (s *DuelService) pickProblem(ctx context.Context, d model.Difficulty) (*model.Problem, []model.TestCase, error) {
	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		problem, cases, err := s.problems.RandomProblem(ctx, d)
		if err == nil {
			return problem, cases, nil
		}
		lastErr = err
		if attempt == s.cfg.RetryAttempts {
			break
		}
		logger.L().Warn("problem_fetch_retry", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, nil, lastErr
}

// pairingFailed tells both players; they are not put back in the queue.
func (s *DuelService) pairingFailed(ctx context.Context, p matchmaking.Pairing, msg string) {
	notice := notify.MatchError{Type: notify.TypeMatchError, Difficulty: p.Difficulty, Message: msg}
	for _, player := range []string{p.Player1, p.Player2} {
		if err := s.notifier.Send(ctx, notify.UserChannel(player), notice); err != nil {
			logger.L().Error("match_error_notify_failed", zap.String("player_id", player), zap.Error(err))
		}
	}
}

// RunCode judges code against the match's tests without touching the match.
// The verdict goes to the player's run-result channel.
func (s *DuelService) RunCode(ctx context.Context, playerID, matchID, code, language string) error {
	channel := notify.RunResultChannel(playerID)
	reply := notify.VerdictMessage{Type: notify.TypeRunResult, MatchID: matchID}

	match, cases, err := s.prepare(ctx, playerID, matchID, false)
	if err != nil {
		s.sendVerdict(ctx, channel, reply, model.ErrorVerdict(userMessage(err)))
		return err
	}

	s.judgeAsync(channel, reply, func(ctx context.Context) (*model.Verdict, string) {
		v := s.evaluator.Evaluate(ctx, code, language, cases)
		logger.L().Info("run_judged",
			zap.String("match_id", match.ID),
			zap.String("player_id", playerID),
			zap.String("status", string(v.Status)),
			zap.Int("passed", v.Passed),
			zap.Int("total", v.Total),
		)
		return v, ""
	}, nil)
	return nil
}

// SubmitCode records a PENDING submission, judges it and declares the
// submitter the winner if it passes while the match is still ONGOING.
func (s *DuelService) SubmitCode(ctx context.Context, playerID, matchID, code, language string) (*model.Submission, error) {
	channel := notify.SubmitResultChannel(playerID)
	reply := notify.VerdictMessage{Type: notify.TypeSubmitResult, MatchID: matchID}

	match, cases, err := s.prepare(ctx, playerID, matchID, true)
	if err != nil {
		s.sendVerdict(ctx, channel, reply, model.ErrorVerdict(userMessage(err)))
		return nil, err
	}

	sub := &model.Submission{
		ID:             uuid.NewString(),
		UserID:         playerID,
		MatchID:        match.ID,
		ProblemID:      match.ProblemID,
		Code:           code,
		Language:       language,
		Status:         model.SubmissionPending,
		TestCasesTotal: len(cases),
	}
	if err := s.submissions.Create(ctx, nil, sub); err != nil {
		logger.L().Error("submission_create_failed", zap.String("match_id", matchID), zap.Error(err))
		s.sendVerdict(ctx, channel, reply, model.ErrorVerdict("Could not record submission"))
		return nil, fmt.Errorf("create submission: %w", err)
	}
	reply.SubmissionID = sub.ID
	logger.L().Info("submission_created",
		zap.String("submission_id", sub.ID),
		zap.String("match_id", matchID),
		zap.String("player_id", playerID),
		zap.Int("test_cases", len(cases)),
	)

	// The pool goroutine owns judged; the caller keeps sub.
	judged := *sub

	// No tests to run: accepted on the spot.
	if len(cases) == 0 {
		v := s.evaluator.Evaluate(ctx, code, language, nil)
		reply.Outcome = s.finishSubmission(ctx, &judged, v)
		s.sendVerdict(ctx, channel, reply, v)
		return &judged, nil
	}

	s.judgeAsync(channel, reply, func(ctx context.Context) (*model.Verdict, string) {
		v := s.evaluator.Evaluate(ctx, code, language, cases)
		return v, s.finishSubmission(context.WithoutCancel(ctx), &judged, v)
	}, func(ctx context.Context, v *model.Verdict) {
		s.finishSubmission(ctx, &judged, v)
	})
	return sub, nil
}

// prepare loads the match and its tests and checks the caller may act on it.
func (s *DuelService) prepare(ctx context.Context, playerID, matchID string, mustBeOngoing bool) (*model.Match, []model.TestCase, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("match %s: %w", matchID, err)
	}
	if !match.HasPlayer(playerID) {
		return nil, nil, common.ErrNotParticipant
	}
	if mustBeOngoing && match.Completed() {
		return nil, nil, common.ErrMatchCompleted
	}
	_, cases, err := s.problems.Problem(ctx, match.ProblemID)
	if err != nil {
		return nil, nil, fmt.Errorf("match %s: %w: %w", matchID, errProblemUnavailable, err)
	}
	return match, cases, nil
}

// finishSubmission stores the verdict and, on ACCEPTED, tries to win the match.
// It returns the outcome to report alongside the verdict.
func (s *DuelService) finishSubmission(ctx context.Context, sub *model.Submission, v *model.Verdict) string {
	sub.Status = v.Status.SubmissionStatus()
	sub.TestCasesPassed = v.Passed
	sub.TestCasesTotal = v.Total
	if raw, err := json.Marshal(v); err == nil {
		sub.ExecutionOutput = raw
	}
	if err := s.submissions.UpdateResult(ctx, nil, sub); err != nil {
		logger.L().Error("submission_update_failed", zap.String("submission_id", sub.ID), zap.Error(err))
	}
	logger.L().Info("submission_judged",
		zap.String("submission_id", sub.ID),
		zap.String("match_id", sub.MatchID),
		zap.String("status", string(sub.Status)),
		zap.Int("passed", v.Passed),
		zap.Int("total", v.Total),
	)

	if v.Status != model.VerdictAccepted {
		return ""
	}

	// the other player may have finished while this one was being judged
	current, err := s.matches.FindByID(ctx, sub.MatchID)
	if err != nil {
		logger.L().Error("match_refetch_failed", zap.String("match_id", sub.MatchID), zap.Error(err))
		return ""
	}
	if current.Completed() {
		return notify.OutcomeAlreadyCompleted
	}

	_, err = s.lifecycle.DeclareWinner(ctx, sub.MatchID, sub.UserID)
	switch {
	case err == nil:
		return notify.OutcomeWin
	case errors.Is(err, common.ErrMatchCompleted):
		return notify.OutcomeAlreadyCompleted
	default:
		logger.L().Error("declare_winner_failed", zap.String("match_id", sub.MatchID), zap.Error(err))
		return ""
	}
}

// judgeAsync runs job on the pool and makes sure exactly one message reaches
// channel, whether job returns, panics, is cancelled before it starts or never
// gets scheduled. onFail, when set, sees the error verdict sent in the last
// three cases. job should persist with a context that outlives pool shutdown.
func (s *DuelService) judgeAsync(channel string, reply notify.VerdictMessage, job func(ctx context.Context) (*model.Verdict, string),
	onFail func(ctx context.Context, v *model.Verdict)) {
	fail := func(ctx context.Context, msg string) {
		v := model.ErrorVerdict(msg)
		if onFail != nil {
			onFail(ctx, v)
		}
		s.sendVerdict(ctx, channel, reply, v)
	}

	err := s.pool.Submit(func(ctx context.Context) {
		if ctx.Err() != nil {
			logger.L().Warn("judge_cancelled", zap.String("match_id", reply.MatchID), zap.Error(ctx.Err()))
			fail(context.Background(), "Judging was cancelled")
			return
		}
		var v *model.Verdict
		defer func() {
			if r := recover(); r != nil {
				logger.L().Error("judge_panic", zap.String("match_id", reply.MatchID), zap.Any("panic", r))
				v = nil
			}
			if v == nil {
				fail(context.Background(), "Internal error while judging")
				return
			}
			s.sendVerdict(context.WithoutCancel(ctx), channel, reply, v)
		}()
		v, reply.Outcome = job(ctx)
	})
	if err != nil {
		logger.L().Error("judge_not_scheduled", zap.String("match_id", reply.MatchID), zap.Error(err))
		fail(context.Background(), "Judging is unavailable")
	}
}

func (s *DuelService) sendVerdict(ctx context.Context, channel string, reply notify.VerdictMessage, v *model.Verdict) {
	reply.Verdict = v
	if err := s.notifier.Send(ctx, channel, reply); err != nil {
		logger.L().Error("verdict_notify_failed", zap.String("channel", channel), zap.Error(err))
	}
}

// GetMatch returns the match when playerID plays in it.
func (s *DuelService) GetMatch(ctx context.Context, playerID, matchID string) (*model.Match, error) {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(playerID) {
		return nil, common.ErrNotParticipant
	}
	return match, nil
}

// CanWatch reports whether playerID may follow the match channel.
func (s *DuelService) CanWatch(ctx context.Context, playerID, matchID string) bool {
	_, err := s.GetMatch(ctx, playerID, matchID)
	return err == nil
}

// MatchHistory lists the player's matches, newest first, from their side.
func (s *DuelService) MatchHistory(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	matches, err := s.matches.ListByPlayer(ctx, playerID, limit)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	history := make([]model.MatchHistoryEntry, 0, len(matches))
	for i := range matches {
		opponent := matches[i].Opponent(playerID)
		name, ok := names[opponent]
		if !ok {
			name = s.lifecycle.DisplayName(ctx, opponent)
			names[opponent] = name
		}
		history = append(history, matches[i].HistoryFor(playerID, name))
	}
	return history, nil
}

// Submissions lists the player's own submissions for a match.
func (s *DuelService) Submissions(ctx context.Context, playerID, matchID string) ([]model.Submission, error) {
	if _, err := s.GetMatch(ctx, playerID, matchID); err != nil {
		return nil, err
	}
	return s.submissions.ListByMatchAndUser(ctx, matchID, playerID)
}

var errProblemUnavailable = errors.New("problem unavailable")

func userMessage(err error) string {
	switch {
	case errors.Is(err, errProblemUnavailable):
		return "Problem not available for this match"
	case errors.Is(err, common.ErrNotFound):
		return "Match not found"
	case errors.Is(err, common.ErrNotParticipant):
		return "You are not a player in this match"
	case errors.Is(err, common.ErrMatchCompleted):
		return "Match already completed"
	default:
		return "Execution failed: " + strings.TrimSpace(err.Error())
	}
}

var _ notify.Dispatcher = (*DuelService)(nil)
