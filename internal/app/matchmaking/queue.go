package matchmaking

import (
	"sync"
	"time"

	"code_duel/internal/domain/model"
	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
)

// Pairing is two players taken off the head of one difficulty bucket.
type Pairing struct {
	Difficulty model.Difficulty
	Player1    string
	Player2    string
	PairedAt   time.Time
}

// PairHandler receives pairings in FIFO order. It runs on the goroutine that
// called Join, after the queue lock is released.
type PairHandler func(Pairing)

type entry struct {
	playerID string
	joinedAt time.Time
}

// Queue holds per-difficulty FIFO waiting lists. One mutex guards every bucket
// together with the player index, which is what keeps a player in one bucket.
type Queue struct {
	mu      sync.Mutex
	buckets map[model.Difficulty][]entry
	members map[string]model.Difficulty
	onPair  PairHandler
	now     func() time.Time
}

func NewQueue(onPair PairHandler) *Queue {
	return &Queue{
		buckets: make(map[model.Difficulty][]entry),
		members: make(map[string]model.Difficulty),
		onPair:  onPair,
		now:     time.Now,
	}
}

// Join appends playerID to the difficulty bucket and pairs greedily.
// Joining the bucket the player already waits in does nothing; joining another
// bucket moves the player.
func (q *Queue) Join(playerID string, difficulty model.Difficulty) {
	q.mu.Lock()
	if current, ok := q.members[playerID]; ok {
		if current == difficulty {
			q.mu.Unlock()
			return
		}
		q.removeLocked(playerID, current)
	}

	q.buckets[difficulty] = append(q.buckets[difficulty], entry{playerID: playerID, joinedAt: q.now()})
	q.members[playerID] = difficulty
	pairs := q.drainLocked(difficulty)
	q.mu.Unlock()

	logger.L().Debug("queue_join",
		zap.String("player_id", playerID),
		zap.String("difficulty", string(difficulty)),
		zap.Int("pairs", len(pairs)))

	for _, p := range pairs {
		if q.onPair != nil {
			q.onPair(p)
		}
	}
}

// Leave removes playerID from every bucket. Unknown players are ignored.
func (q *Queue) Leave(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.members, playerID)
	for d := range q.buckets {
		q.removeLocked(playerID, d)
	}
}

// Waiting returns the players queued under difficulty, oldest first.
func (q *Queue) Waiting(difficulty model.Difficulty) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	bucket := q.buckets[difficulty]
	ids := make([]string, len(bucket))
	for i, e := range bucket {
		ids[i] = e.playerID
	}
	return ids
}

// Position reports which bucket playerID waits in.
func (q *Queue) Position(playerID string) (model.Difficulty, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d, ok := q.members[playerID]
	return d, ok
}

func (q *Queue) drainLocked(difficulty model.Difficulty) []Pairing {
	bucket := q.buckets[difficulty]
	var pairs []Pairing
	for len(bucket) >= 2 {
		a, b := bucket[0], bucket[1]
		bucket = bucket[2:]
		delete(q.members, a.playerID)
		delete(q.members, b.playerID)
		pairs = append(pairs, Pairing{
			Difficulty: difficulty,
			Player1:    a.playerID,
			Player2:    b.playerID,
			PairedAt:   q.now(),
		})
	}
	if len(bucket) == 0 {
		delete(q.buckets, difficulty)
	} else {
		q.buckets[difficulty] = bucket
	}
	return pairs
}

func (q *Queue) removeLocked(playerID string, difficulty model.Difficulty) {
	bucket := q.buckets[difficulty]
	for i, e := range bucket {
		if e.playerID == playerID {
			bucket = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(q.buckets, difficulty)
	} else {
		q.buckets[difficulty] = bucket
	}
}
