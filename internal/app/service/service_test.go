package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"code_duel/internal/app/judge"
	"code_duel/internal/app/worker"
	"code_duel/internal/common"
	"code_duel/internal/common/security"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/config"
)

func newAuthService(t *testing.T) (*AuthService, *repository.MemoryStore) {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("test-key"), JWTExp: time.Hour}
	security.InitJWT()
	store := repository.NewMemoryStore()
	return NewAuthService(nil, store.Users(), store.Profiles()), store
}

func TestSignupCreatesProfile(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, SignupRequest{Username: " alice ", Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if resp.Token == "" || resp.User.Username != "alice" || resp.User.HashedPassword != "" {
		t.Fatalf("response = %+v", resp)
	}
	p, err := store.Profiles().FindByUserID(ctx, resp.User.ID)
	if err != nil || p.Rating != model.DefaultRating {
		t.Fatalf("profile = %+v, %v", p, err)
	}
	if resp.Profile == nil || resp.Profile.UserID != resp.User.ID || resp.Profile.Rating != model.DefaultRating || resp.Profile.Avatar != model.DefaultAvatar {
		t.Fatalf("signup profile = %+v", resp.Profile)
	}

	_, err = svc.Signup(ctx, SignupRequest{Username: "alice", Email: "other@example.com", Password: "secret1"})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("duplicate username err = %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newAuthService(t)
	tests := []struct {
		req  SignupRequest
		want error
	}{
		{SignupRequest{Username: "bob"}, common.ErrBadRequest},
		{SignupRequest{Username: "bob", Email: "bob", Password: "secret1"}, common.ErrValidation},
		{SignupRequest{Username: "bob", Email: "bob@x.io", Password: "123"}, common.ErrValidation},
	}
	for _, tt := range tests {
		if _, err := svc.Signup(context.Background(), tt.req); !errors.Is(err, tt.want) {
			t.Errorf("Signup(%+v) err = %v, want %v", tt.req, err, tt.want)
		}
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupRequest{Username: "carol", Email: "carol@x.io", Password: "secret1"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	for _, login := range []string{"carol", "carol@x.io"} {
		resp, err := svc.Login(ctx, LoginRequest{LoginField: login, Password: "secret1"})
		if err != nil || resp.Token == "" || resp.Profile == nil || resp.Profile.Username != "carol" {
			t.Fatalf("Login(%s) = %+v, %v", login, resp, err)
		}
	}
	if _, err := svc.Login(ctx, LoginRequest{LoginField: "carol", Password: "wrong!!"}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{LoginField: "nobody", Password: "secret1"}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func newProblemService(t *testing.T) (*ProblemService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	pool := worker.NewPool("validate", 1)
	t.Cleanup(func() { pool.Shutdown(context.Background()) })
	evaluator := judge.NewEvaluator(judge.NewAdapter(&scriptSandbox{}, time.Second))
	return NewProblemService(store.Problems(), evaluator, pool, nil), store
}

func echoProblem(title, solution string) CreateProblemRequest {
	return CreateProblemRequest{
		Title:            title,
		Description:      "Print the input.",
		Difficulty:       "easy",
		SolutionCode:     solution,
		SolutionLanguage: "python",
		Examples:         []model.Example{{Input: "a"}},
		TestCases:        []model.TestCase{{Input: "a", ExpectedOutput: "a"}, {Input: "b", ExpectedOutput: "b", IsHidden: true}},
	}
}

func TestCreateProblemValidatesSolution(t *testing.T) {
	svc, store := newProblemService(t)
	ctx := context.Background()

	good, err := svc.CreateProblem(ctx, "admin-1", echoProblem("Echo Back", "echo"))
	if err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}
	if good.Status != model.StatusPendingValidation || good.Slug != "echo-back" || good.Difficulty != model.DifficultyEasy {
		t.Fatalf("problem = %+v", good)
	}
	bad, err := svc.CreateProblem(ctx, "admin-1", echoProblem("Broken", "wrong"))
	if err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}

	status := func(id string) model.ProblemStatus {
		p, _ := store.Problems().FindProblemByID(ctx, id)
		return p.Status
	}
	waitFor(t, "validation", func() bool {
		return status(good.ID) == model.StatusPublished && status(bad.ID) == model.StatusRejected
	})

	cases, _ := store.Problems().GetTestCasesByProblemID(ctx, good.ID)
	if len(cases) != 2 || cases[0].ID == "" || cases[0].ProblemID != good.ID {
		t.Fatalf("test cases = %+v", cases)
	}
}

func TestCreateProblemWithoutSolutionPublishes(t *testing.T) {
	svc, _ := newProblemService(t)
	req := echoProblem("Plain", "")
	p, err := svc.CreateProblem(context.Background(), "admin-1", req)
	if err != nil || p.Status != model.StatusPublished || p.SolutionCode != nil {
		t.Fatalf("problem = %+v, %v", p, err)
	}

	req.TestCases = nil
	if _, err := svc.CreateProblem(context.Background(), "admin-1", req); !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("no tests err = %v", err)
	}
	req = echoProblem("Odd", "")
	req.Difficulty = "nightmare"
	if _, err := svc.CreateProblem(context.Background(), "admin-1", req); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("bad difficulty err = %v", err)
	}
	req = echoProblem("Odd", "print(1)")
	req.SolutionLanguage = "cobol"
	if _, err := svc.CreateProblem(context.Background(), "admin-1", req); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("bad language err = %v", err)
	}
}

func TestProblemVisibilityByRole(t *testing.T) {
	svc, store := newProblemService(t)
	ctx := context.Background()
	published, _ := svc.CreateProblem(ctx, "admin-1", echoProblem("Visible", ""))
	draft := &model.Problem{ID: "d1", Title: "Hidden", Slug: "hidden", Difficulty: model.DifficultyHard, Status: model.StatusDraft}
	store.Problems().CreateProblem(ctx, nil, draft)

	p, err := svc.GetProblemDetails(ctx, published.Slug, model.RoleUser)
	if err != nil || len(p.Examples) != 1 || p.TestCases != nil {
		t.Fatalf("user view = %+v, %v", p, err)
	}
	p, err = svc.GetProblemDetails(ctx, published.Slug, model.RoleAdmin)
	if err != nil || len(p.TestCases) != 2 {
		t.Fatalf("admin view = %+v, %v", p, err)
	}
	if _, err := svc.GetProblemDetails(ctx, "hidden", model.RoleUser); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("draft for user err = %v", err)
	}

	list, total, err := svc.ListProblems(ctx, 1, 10, "", model.RoleUser)
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("user list = %d/%d, %v", len(list), total, err)
	}
	_, total, _ = svc.ListProblems(ctx, 1, 10, "", model.RoleAdmin)
	if total != 2 {
		t.Fatalf("admin total = %d", total)
	}
	_, total, _ = svc.ListProblems(ctx, 1, 10, "hard", model.RoleAdmin)
	if total != 1 {
		t.Fatalf("hard total = %d", total)
	}
}

func TestLeaderboard(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, store, "a:ann", "b:ben", "c:cat")
	store.Profiles().ApplyResult(ctx, nil, "b", model.WinnerRatingDelta, true)
	store.Profiles().ApplyResult(ctx, nil, "a", model.LoserRatingDelta, false)

	svc := NewProfileService(store.Profiles())
	board, err := svc.Leaderboard(ctx, 0)
	if err != nil || len(board) != 3 {
		t.Fatalf("board = %+v, %v", board, err)
	}
	if board[0].UserID != "b" || board[0].Rank != 1 || board[1].UserID != "c" || board[2].Rank != 3 {
		t.Fatalf("board = %+v", board)
	}

	p, err := svc.GetProfile(ctx, "a")
	if err != nil || p.Losses != 1 || p.Rating != 985 {
		t.Fatalf("profile = %+v, %v", p, err)
	}
	if _, err := svc.GetProfile(ctx, "zed"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing profile err = %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, store, "a:ann")
	svc := NewProfileService(store.Profiles())

	bio, lc := "two sum enjoyer", "ann_lc"
	p, err := svc.UpdateProfile(ctx, "a", model.ProfileEdit{Bio: &bio, LeetcodeUsername: &lc})
	if err != nil || p.Bio != bio || p.LeetcodeUsername != lc || p.Avatar != model.DefaultAvatar {
		t.Fatalf("profile = %+v, %v", p, err)
	}
	stored, _ := store.Profiles().FindByUserID(ctx, "a")
	if stored.Bio != bio || stored.Rating != model.DefaultRating {
		t.Fatalf("stored = %+v", stored)
	}

	long := strings.Repeat("x", model.MaxBioLength+1)
	if _, err := svc.UpdateProfile(ctx, "a", model.ProfileEdit{Bio: &long}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("long bio err = %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "zed", model.ProfileEdit{Bio: &bio}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing profile err = %v", err)
	}
}
