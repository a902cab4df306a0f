package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"code_duel/internal/domain/model"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  []string
	called chan string
	watch  bool
}

func newFakeDispatcher(watch bool) *fakeDispatcher {
	return &fakeDispatcher{called: make(chan string, 16), watch: watch}
}

func (f *fakeDispatcher) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
	f.called <- s
}

func (f *fakeDispatcher) JoinQueue(_ context.Context, playerID, difficulty string) error {
	f.record("join:" + playerID + ":" + difficulty)
	return nil
}
func (f *fakeDispatcher) LeaveQueue(_ context.Context, playerID string) error {
	f.record("leave:" + playerID)
	return nil
}
func (f *fakeDispatcher) RunCode(_ context.Context, playerID, matchID, _, _ string) error {
	f.record("run:" + playerID + ":" + matchID)
	return nil
}
func (f *fakeDispatcher) SubmitCode(_ context.Context, playerID, matchID, _, _ string) (*model.Submission, error) {
	f.record("submit:" + playerID + ":" + matchID)
	return &model.Submission{ID: "s1"}, nil
}
func (f *fakeDispatcher) CanWatch(context.Context, string, string) bool { return f.watch }

func queryUser(r *http.Request) (string, bool) {
	u := r.URL.Query().Get("user")
	return u, u != ""
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialHub(t *testing.T, hub *Hub, user string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?user="+user, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var env Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestChannelNames(t *testing.T) {
	if got := RunResultChannel("u1"); got != "/topic/user/u1/run-result" {
		t.Fatalf("run channel = %q", got)
	}
	if got := SubmitResultChannel("u1"); got != "/topic/user/u1/submit-result" {
		t.Fatalf("submit channel = %q", got)
	}
	if got := MatchChannel("m1"); got != "/topic/match/m1" {
		t.Fatalf("match channel = %q", got)
	}
}

func TestHubDeliversToOwnChannelsOnly(t *testing.T) {
	hub := NewHub(queryUser)
	conn := dialHub(t, hub, "alice")
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	ctx := context.Background()
	hub.Send(ctx, UserChannel("bob"), map[string]string{"type": "not-for-alice"})
	hub.Send(ctx, RunResultChannel("alice"), map[string]string{"type": "for-alice"})

	env := readEnvelope(t, conn)
	if env.Channel != RunResultChannel("alice") {
		t.Fatalf("channel = %q", env.Channel)
	}
	var body map[string]string
	json.Unmarshal(env.Payload, &body)
	if body["type"] != "for-alice" {
		t.Fatalf("payload = %s", env.Payload)
	}
}

func TestHubDispatchesInbound(t *testing.T) {
	hub := NewHub(queryUser)
	d := newFakeDispatcher(true)
	hub.Attach(d)
	conn := dialHub(t, hub, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wsjson.Write(ctx, conn, Inbound{Type: InQueueJoin, Difficulty: "easy"})
	wsjson.Write(ctx, conn, Inbound{Type: InMatchSubmit, MatchID: "m1", Code: "x", Language: "cpp"})

	for _, want := range []string{"join:alice:easy", "submit:alice:m1"} {
		select {
		case got := <-d.called:
			if got != want {
				t.Fatalf("dispatch = %q, want %q", got, want)
			}
		case <-ctx.Done():
			t.Fatalf("no dispatch for %q", want)
		}
	}
}

func TestHubMatchSubscription(t *testing.T) {
	hub := NewHub(queryUser)
	hub.Attach(newFakeDispatcher(true))
	conn := dialHub(t, hub, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wsjson.Write(ctx, conn, Inbound{Type: InMatchSubscribe, MatchID: "m1"})
	waitFor(t, "match subscription", func() bool { return hub.subscriberCount(MatchChannel("m1")) == 1 })

	hub.Send(ctx, MatchChannel("m1"), MatchResult{Type: TypeMatchResult, MatchID: "m1", WinnerID: "alice"})
	if env := readEnvelope(t, conn); env.Channel != MatchChannel("m1") {
		t.Fatalf("channel = %q", env.Channel)
	}
}

func TestHubRejectsForeignMatch(t *testing.T) {
	hub := NewHub(queryUser)
	hub.Attach(newFakeDispatcher(false))
	conn := dialHub(t, hub, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wsjson.Write(ctx, conn, Inbound{Type: InMatchSubscribe, MatchID: "m9"})

	env := readEnvelope(t, conn)
	if env.Channel != UserChannel("alice") || !strings.Contains(string(env.Payload), `"error"`) {
		t.Fatalf("expected error reply, got %s %s", env.Channel, env.Payload)
	}
	if hub.subscriberCount(MatchChannel("m9")) != 0 {
		t.Fatalf("foreign match subscription accepted")
	}
}

func TestHubRequiresIdentity(t *testing.T) {
	hub := NewHub(queryUser)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRedisNotifierPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, EventsTopic("duel:"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n := NewRedisNotifier(rdb, "duel:")
	if err := n.Send(ctx, MatchChannel("m1"), MatchResult{Type: TypeMatchResult, MatchID: "m1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Channel != MatchChannel("m1") {
			t.Fatalf("channel = %q", env.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message published")
	}
}

func TestRelayForwardsToHub(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hub := NewHub(queryUser)
	conn := dialHub(t, hub, "bob")
	waitFor(t, "client registration", func() bool { return hub.ClientCount() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Relay(ctx, rdb, "duel:", hub)
	waitFor(t, "relay subscription", func() bool {
		counts, err := rdb.PubSubNumSub(ctx, EventsTopic("duel:")).Result()
		return err == nil && counts[EventsTopic("duel:")] == 1
	})

	if err := NewRedisNotifier(rdb, "duel:").Send(ctx, UserChannel("bob"), map[string]string{"type": TypeMatchFound}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if env := readEnvelope(t, conn); env.Channel != UserChannel("bob") {
		t.Fatalf("channel = %q", env.Channel)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Send(context.Background(), "a", 1)
	r.Send(context.Background(), "b", 2)
	r.Send(context.Background(), "a", 3)
	if got := r.On("a"); len(got) != 2 || string(got[1]) != "3" {
		t.Fatalf("On(a) = %s", got)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d", r.Len())
	}
}
