package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

// MemoryStore keeps every table in process memory. It backs STORAGE_DRIVER=memory
// and the service tests. Transactions are ignored; callers pass a nil tx.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[string]*model.User
	profiles    map[string]*model.Profile
	matches     map[string]*model.Match
	submissions map[string]*model.Submission
	problems    map[string]*model.Problem
	examples    map[string][]model.Example  // problemID -> examples
	testCases   map[string][]model.TestCase // problemID -> cases

	problemOrder []string // insertion order, oldest first
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*model.User),
		profiles:    make(map[string]*model.Profile),
		matches:     make(map[string]*model.Match),
		submissions: make(map[string]*model.Submission),
		problems:    make(map[string]*model.Problem),
		examples:    make(map[string][]model.Example),
		testCases:   make(map[string][]model.TestCase),
		now:         time.Now,
	}
}

func (s *MemoryStore) Users() UserRepository             { return memUsers{s} }
func (s *MemoryStore) Profiles() ProfileRepository       { return memProfiles{s} }
func (s *MemoryStore) Matches() MatchRepository          { return memMatches{s} }
func (s *MemoryStore) Submissions() SubmissionRepository { return memSubmissions{s} }
func (s *MemoryStore) Problems() ProblemRepository       { return memProblems{s} }

type memUsers struct{ s *MemoryStore }

func (m memUsers) Create(_ context.Context, _ *sql.Tx, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
	}
	now := m.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	c := *user
	m.s.users[user.ID] = &c
	return nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username })
}

func (m memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, u := range m.s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

type memProfiles struct{ s *MemoryStore }

func (m memProfiles) Create(_ context.Context, _ *sql.Tx, p *model.Profile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.profiles[p.UserID]; ok {
		return fmt.Errorf("profile for user %s already exists: %w", p.UserID, common.ErrConflict)
	}
	now := m.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	c := *p
	m.s.profiles[p.UserID] = &c
	return nil
}

func (m memProfiles) FindByUserID(_ context.Context, userID string) (*model.Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	p, ok := m.s.profiles[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m memProfiles) Update(_ context.Context, _ *sql.Tx, p *model.Profile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.profiles[p.UserID]
	if !ok {
		return common.ErrNotFound
	}
	stored.Bio = p.Bio
	stored.Avatar = p.Avatar
	stored.LeetcodeUsername = p.LeetcodeUsername
	stored.CodechefUsername = p.CodechefUsername
	stored.CodeforcesHandle = p.CodeforcesHandle
	stored.UpdatedAt = m.s.now()
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m memProfiles) ApplyResult(_ context.Context, _ *sql.Tx, userID string, delta int, won bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.profiles[userID]
	if !ok {
		p = model.NewProfile(userID, "")
		p.CreatedAt = m.s.now()
		m.s.profiles[userID] = p
	}
	p.Apply(delta, won)
	p.UpdatedAt = m.s.now()
	return nil
}

func (m memProfiles) Top(_ context.Context, limit int) ([]model.Profile, error) {
	m.s.mu.RLock()
	out := make([]model.Profile, 0, len(m.s.profiles))
	for _, p := range m.s.profiles {
		c := *p
		if c.Username == "" {
			if u, ok := m.s.users[c.UserID]; ok {
				c.Username = u.Username
			} else {
				c.Username = c.UserID
			}
		}
		out = append(out, c)
	}
	m.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memMatches struct{ s *MemoryStore }

func (m memMatches) Create(_ context.Context, _ *sql.Tx, match *model.Match) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.matches[match.ID]; ok {
		return fmt.Errorf("match %s already exists: %w", match.ID, common.ErrConflict)
	}
	c := *match
	m.s.matches[match.ID] = &c
	return nil
}

func (m memMatches) FindByID(_ context.Context, id string) (*model.Match, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	match, ok := m.s.matches[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *match
	return &c, nil
}

func (m memMatches) Complete(_ context.Context, _ *sql.Tx, match *model.Match) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.matches[match.ID]
	if !ok {
		return common.ErrNotFound
	}
	if stored.Status != model.MatchOngoing {
		return common.ErrMatchCompleted
	}
	stored.Status = model.MatchCompleted
	stored.WinnerID = match.WinnerID
	stored.EndTime = match.EndTime
	stored.Player1RatingDelta = match.Player1RatingDelta
	stored.Player2RatingDelta = match.Player2RatingDelta
	return nil
}

func (m memMatches) ListByPlayer(_ context.Context, playerID string, limit int) ([]model.Match, error) {
	m.s.mu.RLock()
	var out []model.Match
	for _, match := range m.s.matches {
		if match.HasPlayer(playerID) {
			out = append(out, *match)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memSubmissions struct{ s *MemoryStore }

func (m memSubmissions) Create(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.matches[sub.MatchID]; !ok {
		return fmt.Errorf("match %s: %w", sub.MatchID, common.ErrNotFound)
	}
	now := m.s.now()
	sub.SubmittedAt, sub.UpdatedAt = now, now
	c := *sub
	m.s.submissions[sub.ID] = &c
	return nil
}

func (m memSubmissions) UpdateResult(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.submissions[sub.ID]
	if !ok {
		return common.ErrNotFound
	}
	if stored.Status != model.SubmissionPending {
		return fmt.Errorf("submission %s is not pending: %w", sub.ID, common.ErrConflict)
	}
	stored.Status = sub.Status
	stored.TestCasesPassed = sub.TestCasesPassed
	stored.TestCasesTotal = sub.TestCasesTotal
	stored.ExecutionOutput = slices.Clone(sub.ExecutionOutput)
	stored.UpdatedAt = m.s.now()
	return nil
}

func (m memSubmissions) FindByID(_ context.Context, id string) (*model.Submission, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	sub, ok := m.s.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *sub
	return &c, nil
}

func (m memSubmissions) ListByMatchAndUser(_ context.Context, matchID, userID string) ([]model.Submission, error) {
	m.s.mu.RLock()
	var out []model.Submission
	for _, sub := range m.s.submissions {
		if sub.MatchID == matchID && sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	m.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type memProblems struct{ s *MemoryStore }

func (m memProblems) CreateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.problems {
		if existing.Slug == p.Slug {
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
	}
	now := m.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	c := *p
	c.Examples, c.TestCases = nil, nil
	m.s.problems[p.ID] = &c
	m.s.problemOrder = append(m.s.problemOrder, p.ID)
	return nil
}

func (m memProblems) UpdateProblemStatus(_ context.Context, _ *sql.Tx, problemID string, status model.ProblemStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.problems[problemID]
	if !ok {
		return common.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = m.s.now()
	return nil
}

func (m memProblems) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	p, ok := m.s.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m memProblems) FindProblemBySlug(_ context.Context, slug string) (*model.Problem, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, p := range m.s.problems {
		if p.Slug == slug {
			c := *p
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m memProblems) ListProblems(_ context.Context, limit, offset int, difficulty model.Difficulty, status model.ProblemStatus) ([]model.Problem, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	matched := []model.Problem{}
	// newest first, like the SQL ordering
	for i := len(m.s.problemOrder) - 1; i >= 0; i-- {
		p := m.s.problems[m.s.problemOrder[i]]
		if difficulty != "" && p.Difficulty != difficulty {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		matched = append(matched, *p)
	}
	total := len(matched)
	if offset >= total {
		return []model.Problem{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m memProblems) RandomPublished(_ context.Context, difficulty model.Difficulty) (*model.Problem, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var pool []*model.Problem
	for _, id := range m.s.problemOrder {
		p := m.s.problems[id]
		if p.Difficulty == difficulty && p.Status == model.StatusPublished {
			pool = append(pool, p)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("no published %s problem: %w", difficulty, common.ErrNotFound)
	}
	c := *pool[rand.IntN(len(pool))]
	return &c, nil
}

func (m memProblems) AddExamplesToProblem(_ context.Context, _ *sql.Tx, problemID string, examples []model.Example) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, ex := range examples {
		ex.ProblemID = problemID
		ex.SortOrder = i + 1
		m.s.examples[problemID] = append(m.s.examples[problemID], ex)
	}
	return nil
}

func (m memProblems) GetExamplesByProblemID(_ context.Context, problemID string) ([]model.Example, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return slices.Clone(m.s.examples[problemID]), nil
}

func (m memProblems) AddTestCasesToProblem(_ context.Context, _ *sql.Tx, problemID string, testCases []model.TestCase) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, tc := range testCases {
		tc.ProblemID = problemID
		tc.SortOrder = i + 1
		m.s.testCases[problemID] = append(m.s.testCases[problemID], tc)
	}
	return nil
}

func (m memProblems) GetTestCasesByProblemID(_ context.Context, problemID string) ([]model.TestCase, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return slices.Clone(m.s.testCases[problemID]), nil
}
