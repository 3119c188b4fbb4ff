package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dhruvin2968/facebook-messaging/internal/cache"
	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/room"
)

// fakeRepo is an in-memory MessageRepository for store tests.
type fakeRepo struct {
	mu        sync.Mutex
	messages  map[string][]domain.Message
	summaries map[string]domain.ConversationSummary // roomID -> latest
	members   map[string][2]string
	failing   bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		messages:  make(map[string][]domain.Message),
		summaries: make(map[string]domain.ConversationSummary),
		members:   make(map[string][2]string),
	}
}

func (r *fakeRepo) Append(_ context.Context, msg *domain.Message, participants [2]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("disk on fire")
	}
	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], *msg)
	r.members[msg.RoomID] = participants

	otherID := participants[0]
	if otherID == msg.FromID {
		otherID = participants[1]
	}
	r.summaries[msg.RoomID] = domain.ConversationSummary{
		RoomID:    msg.RoomID,
		OtherID:   otherID,
		LastMsg:   *msg,
		UpdatedAt: msg.Timestamp,
	}
	return nil
}

func (r *fakeRepo) ListMessages(_ context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages[roomID] {
		if m.Seq > afterSeq {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) ListConversations(_ context.Context, userID string) ([]domain.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ConversationSummary
	for roomID, s := range r.summaries {
		m := r.members[roomID]
		if m[0] != userID && m[1] != userID {
			continue
		}
		if s.OtherID == userID {
			// Viewed from the other side.
			s.OtherID = s.LastMsg.FromID
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeRepo) LatestSeq(_ context.Context, roomID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for _, m := range r.messages[roomID] {
		if m.Seq > max {
			max = m.Seq
		}
	}
	return max, nil
}

func (r *fakeRepo) Close() error { return nil }

func (r *fakeRepo) setFailing(v bool) {
	r.mu.Lock()
	r.failing = v
	r.mu.Unlock()
}

func mustRoom(t *testing.T, a, b string) string {
	t.Helper()
	id, err := room.Derive(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestAppendRejectsEmptyText(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	for _, text := range []string{"", "   ", "\n\t "} {
		if _, err := s.Append(context.Background(), roomID, "u1", "Alice", text); !errors.Is(err, domain.ErrEmptyMessage) {
			t.Errorf("Append(%q): expected ErrEmptyMessage, got %v", text, err)
		}
	}

	page, err := s.ListMessages(context.Background(), roomID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 0 {
		t.Fatal("empty message was stored")
	}
}

func TestAppendAssignsOrderedSeq(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	for i := 0; i < 5; i++ {
		if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "hello"); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListMessages(context.Background(), roomID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(page.Messages))
	}
	for i, m := range page.Messages {
		if m.Seq != int64(i+1) {
			t.Fatalf("message %d has seq %d", i, m.Seq)
		}
	}
}

func TestConcurrentAppendsSameRoomKeepOrder(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, name := "u1", "Alice"
			if i%2 == 1 {
				from, name = "u2", "Bob"
			}
			if _, err := s.Append(context.Background(), roomID, from, name, "msg"); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	page, err := s.ListMessages(context.Background(), roomID, 0, n)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != n {
		t.Fatalf("lost messages: expected %d, got %d", n, len(page.Messages))
	}
	for i := 1; i < len(page.Messages); i++ {
		prev, cur := page.Messages[i-1], page.Messages[i]
		if cur.Seq != prev.Seq+1 {
			t.Fatalf("seq gap: %d then %d", prev.Seq, cur.Seq)
		}
		if cur.Timestamp.Before(prev.Timestamp) {
			t.Fatalf("timestamps regressed at seq %d", cur.Seq)
		}
	}

	// Stable across repeated reads.
	again, err := s.ListMessages(context.Background(), roomID, 0, n)
	if err != nil {
		t.Fatal(err)
	}
	for i := range page.Messages {
		if page.Messages[i].ID != again.Messages[i].ID {
			t.Fatal("message order changed between reads")
		}
	}
}

func TestSeqResumesFromRepository(t *testing.T) {
	repo := newFakeRepo()
	roomID := mustRoom(t, "u1", "u2")

	first := NewStore(repo, nil, Config{})
	if _, err := first.Append(context.Background(), roomID, "u1", "Alice", "one"); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same repository continues the sequence.
	second := NewStore(repo, nil, Config{})
	msg, err := second.Append(context.Background(), roomID, "u2", "Bob", "two")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Seq != 2 {
		t.Fatalf("expected seq 2 after restart, got %d", msg.Seq)
	}
}

func TestSubscribeReceivesInAppendOrder(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	var mu sync.Mutex
	var got []int64
	sub := s.Subscribe(roomID, func(msg domain.Message) {
		mu.Lock()
		got = append(got, msg.Seq)
		mu.Unlock()
	})
	defer sub.Cancel()

	for i := 0; i < 10; i++ {
		if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "m"); err != nil {
			t.Fatal(err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("expected 10 callbacks, got %d", len(got))
	}
	for i, seq := range got {
		if seq != int64(i+1) {
			t.Fatalf("callback order broken: %v", got)
		}
	}
}

func TestSubscriptionCancel(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	var count int
	sub := s.Subscribe(roomID, func(domain.Message) { count++ })

	if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "one"); err != nil {
		t.Fatal(err)
	}
	sub.Cancel()
	sub.Cancel() // idempotent
	if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "two"); err != nil {
		t.Fatal(err)
	}

	if count != 1 {
		t.Fatalf("expected 1 callback after cancel, got %d", count)
	}
}

func TestMultipleSubscribersPerRoom(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	var a, b int
	s.Subscribe(roomID, func(domain.Message) { a++ })
	s.Subscribe(roomID, func(domain.Message) { b++ })

	if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "hi"); err != nil {
		t.Fatal(err)
	}
	if a != 1 || b != 1 {
		t.Fatalf("expected both subscribers notified, got a=%d b=%d", a, b)
	}
}

func TestAppendFailureNotifiesNobody(t *testing.T) {
	repo := newFakeRepo()
	s := NewStore(repo, nil, Config{})
	roomID := mustRoom(t, "u1", "u2")

	var count int
	s.Subscribe(roomID, func(domain.Message) { count++ })

	repo.setFailing(true)
	if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "hi"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if count != 0 {
		t.Fatal("subscriber notified for a failed append")
	}

	// Retry after recovery succeeds and notifies exactly once.
	repo.setFailing(false)
	if _, err := s.Append(context.Background(), roomID, "u1", "Alice", "hi"); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 callback, got %d", count)
	}
}

func TestListConversationsFiltersAndSorts(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{})
	now := time.Unix(5000, 0)
	s.clock = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	r12 := mustRoom(t, "u1", "u2")
	r13 := mustRoom(t, "u1", "u3")
	r23 := mustRoom(t, "u2", "u3")

	ctx := context.Background()
	if _, err := s.Append(ctx, r12, "u2", "Bob", "oldest"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, r23, "u2", "Bob", "not u1's room"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, r13, "u3", "Carol", "newest"); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.ListConversations(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations for u1, got %d", len(summaries))
	}
	if summaries[0].RoomID != r13 || summaries[1].RoomID != r12 {
		t.Fatalf("conversations not sorted by recency: %v then %v", summaries[0].RoomID, summaries[1].RoomID)
	}
	for _, s := range summaries {
		if s.RoomID == r23 {
			t.Fatal("u1 sees a room it does not participate in")
		}
	}
}

func TestListMessagesPaging(t *testing.T) {
	s := NewStore(newFakeRepo(), nil, Config{PageLimit: 100})
	roomID := mustRoom(t, "u1", "u2")
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := s.Append(ctx, roomID, "u1", "Alice", "m"); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListMessages(ctx, roomID, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 3 || !page.HasMore || page.NextCursor != 3 {
		t.Fatalf("unexpected first page: len=%d hasMore=%v cursor=%d", len(page.Messages), page.HasMore, page.NextCursor)
	}

	page, err = s.ListMessages(ctx, roomID, page.NextCursor, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 4 || page.HasMore {
		t.Fatalf("unexpected last page: len=%d hasMore=%v", len(page.Messages), page.HasMore)
	}
	if page.Messages[0].Seq != 4 {
		t.Fatalf("paging skipped or repeated: first seq %d", page.Messages[0].Seq)
	}
}

// fakeCache mirrors the redis cache's bookkeeping: a page key is only
// invalidated if it was registered under its room when it was set.
type fakeCache struct {
	mu       sync.Mutex
	pages    map[string]*domain.MessagePage
	roomKeys map[string]map[string]struct{}
	convs    map[string][]domain.ConversationSummary
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		pages:    make(map[string]*domain.MessagePage),
		roomKeys: make(map[string]map[string]struct{}),
		convs:    make(map[string][]domain.ConversationSummary),
	}
}

func (c *fakeCache) GetHistory(_ context.Context, key string) (*domain.MessagePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pages[key]; ok {
		return p, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeCache) SetHistory(_ context.Context, roomID, key string, page *domain.MessagePage, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = page
	if c.roomKeys[roomID] == nil {
		c.roomKeys[roomID] = make(map[string]struct{})
	}
	c.roomKeys[roomID][key] = struct{}{}
	return nil
}

func (c *fakeCache) HistoryKey(roomID string, afterSeq int64, limit int) string {
	return fmt.Sprintf("hist:%s:%d:%d", roomID, afterSeq, limit)
}

func (c *fakeCache) GetConversations(_ context.Context, userID string) ([]domain.ConversationSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.convs[userID]; ok {
		return s, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *fakeCache) SetConversations(_ context.Context, userID string, summaries []domain.ConversationSummary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convs[userID] = summaries
	return nil
}

func (c *fakeCache) InvalidateRoom(_ context.Context, roomID string, participants [2]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.roomKeys[roomID] {
		delete(c.pages, key)
	}
	delete(c.roomKeys, roomID)
	delete(c.convs, participants[0])
	delete(c.convs, participants[1])
	return nil
}

func (c *fakeCache) Close() error { return nil }

func TestCachedEmptyHistoryInvalidatedByAppend(t *testing.T) {
	fc := newFakeCache()
	s := NewStore(newFakeRepo(), fc, Config{PageLimit: 100, CacheTTL: time.Minute})
	roomID := mustRoom(t, "u1", "u2")
	ctx := context.Background()

	// Read before any message exists, caching the empty page.
	page, err := s.ListMessages(ctx, roomID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 0 {
		t.Fatalf("expected empty room, got %d messages", len(page.Messages))
	}

	if _, err := s.Append(ctx, roomID, "u1", "Alice", "hi"); err != nil {
		t.Fatal(err)
	}

	page, err = s.ListMessages(ctx, roomID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Text != "hi" {
		t.Fatalf("stale page served after append: %+v", page.Messages)
	}
}

func TestCacheServesRepeatReads(t *testing.T) {
	fc := newFakeCache()
	repo := newFakeRepo()
	s := NewStore(repo, fc, Config{PageLimit: 100, CacheTTL: time.Minute})
	roomID := mustRoom(t, "u1", "u2")
	ctx := context.Background()

	if _, err := s.Append(ctx, roomID, "u1", "Alice", "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListMessages(ctx, roomID, 0, 10); err != nil {
		t.Fatal(err)
	}

	// Second read must come from the cache, not the repository.
	repo.mu.Lock()
	repo.messages[roomID] = nil
	repo.mu.Unlock()

	page, err := s.ListMessages(ctx, roomID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("expected cached page with 1 message, got %d", len(page.Messages))
	}
}
