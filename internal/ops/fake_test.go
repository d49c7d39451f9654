package ops

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/post"
	"github.com/hpungsan/cadence/internal/recommend"
	"github.com/hpungsan/cadence/internal/store"
)

// fakeStore is an in-memory store.PostStore with hooks for holding calls
// open, so tests can interleave reads and mutations deterministically.
type fakeStore struct {
	mu     sync.Mutex
	posts  map[string]post.Post
	recs   []recommend.Recommendation
	slots  []recommend.TimeSlot
	calls  map[string]int
	nextID int

	listErr error
	// recsErr fails Recommendations and TimeSlots.
	recsErr error

	// listGate runs after List has captured its result, outside the lock.
	listGate func(call int)
	// mutateGate runs before a mutation touches the data, outside the lock.
	mutateGate func(op, id string)
}

var _ store.PostStore = (*fakeStore)(nil)

func newFakeStore(posts ...post.Post) *fakeStore {
	fs := &fakeStore{posts: make(map[string]post.Post), calls: make(map[string]int)}
	for _, p := range posts {
		fs.posts[p.ID] = p
	}
	return fs
}

func (fs *fakeStore) count(op string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[op]
}

func (fs *fakeStore) setListErr(err error) {
	fs.mu.Lock()
	fs.listErr = err
	fs.mu.Unlock()
}

func (fs *fakeStore) setRecsErr(err error) {
	fs.mu.Lock()
	fs.recsErr = err
	fs.mu.Unlock()
}

func (fs *fakeStore) setSchedule(id string, at time.Time) {
	fs.mu.Lock()
	p := fs.posts[id]
	p.ScheduledDate = at
	fs.posts[id] = p
	fs.mu.Unlock()
}

func (fs *fakeStore) List(_ context.Context, _ store.Credentials, _ calendar.Filter) ([]post.Post, error) {
	fs.mu.Lock()
	fs.calls["list"]++
	call := fs.calls["list"]
	err := fs.listErr
	out := make([]post.Post, 0, len(fs.posts))
	for _, p := range fs.posts {
		out = append(out, p)
	}
	gate := fs.listGate
	fs.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if gate != nil {
		gate(call)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (fs *fakeStore) Get(_ context.Context, _ store.Credentials, id string) (*post.Post, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["get"]++
	p, ok := fs.posts[id]
	if !ok {
		return nil, errors.NewNotFound("post", id)
	}
	return &p, nil
}

func (fs *fakeStore) Create(_ context.Context, _ store.Credentials, req post.CreateRequest) (*post.Post, error) {
	fs.gate("create", "")
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["create"]++
	fs.nextID++
	p := post.Post{
		ID:            fmt.Sprintf("new%d", fs.nextID),
		Title:         req.Title,
		Content:       req.Content,
		Platforms:     req.Platforms,
		ScheduledDate: req.ScheduledDate,
		Status:        req.Status,
		Tags:          req.Tags,
		AllDay:        req.AllDay,
	}
	fs.posts[p.ID] = p
	return &p, nil
}

func (fs *fakeStore) Update(_ context.Context, _ store.Credentials, id string, req post.UpdateRequest) (*post.Post, error) {
	fs.gate("update", id)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["update"]++
	p, ok := fs.posts[id]
	if !ok {
		return nil, errors.NewNotFound("post", id)
	}
	req.Apply(&p)
	fs.posts[id] = p
	return &p, nil
}

func (fs *fakeStore) Reschedule(_ context.Context, _ store.Credentials, id string, at time.Time) (*post.Post, error) {
	fs.gate("reschedule", id)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["reschedule"]++
	p, ok := fs.posts[id]
	if !ok {
		return nil, errors.NewNotFound("post", id)
	}
	p.ScheduledDate = at
	fs.posts[id] = p
	return &p, nil
}

func (fs *fakeStore) Delete(_ context.Context, _ store.Credentials, id string) error {
	fs.gate("delete", id)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["delete"]++
	if _, ok := fs.posts[id]; !ok {
		return errors.NewNotFound("post", id)
	}
	delete(fs.posts, id)
	return nil
}

func (fs *fakeStore) Recommendations(_ context.Context, _ store.Credentials, platform post.Platform) ([]recommend.Recommendation, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["recommendations"]++
	if fs.recsErr != nil {
		return nil, fs.recsErr
	}
	var out []recommend.Recommendation
	for _, r := range fs.recs {
		if platform == "" || r.Platform == platform {
			out = append(out, r)
		}
	}
	return out, nil
}

func (fs *fakeStore) ImportRecommendations(_ context.Context, _ store.Credentials, recs []recommend.Recommendation) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["import"]++
	fs.recs = append(fs.recs, recs...)
	return len(recs), nil
}

func (fs *fakeStore) TimeSlots(_ context.Context, _ store.Credentials, platform post.Platform) ([]recommend.TimeSlot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.recsErr != nil {
		return nil, fs.recsErr
	}
	var out []recommend.TimeSlot
	for _, s := range fs.slots {
		if platform == "" || s.Platform == platform {
			out = append(out, s)
		}
	}
	return out, nil
}

func (fs *fakeStore) SaveTimeSlot(_ context.Context, _ store.Credentials, slot recommend.TimeSlot) (*recommend.TimeSlot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls["save_slot"]++
	for i := range fs.slots {
		if fs.slots[i].ID == slot.ID {
			fs.slots[i] = slot
			return &slot, nil
		}
	}
	fs.slots = append(fs.slots, slot)
	return &slot, nil
}

func (fs *fakeStore) SetTimeSlotActive(_ context.Context, _ store.Credentials, id string, active bool) (*recommend.TimeSlot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.slots {
		if fs.slots[i].ID == id {
			fs.slots[i].IsActive = active
			s := fs.slots[i]
			return &s, nil
		}
	}
	return nil, errors.NewNotFound("time_slot", id)
}

func (fs *fakeStore) gate(op, id string) {
	fs.mu.Lock()
	g := fs.mutateGate
	fs.mu.Unlock()
	if g != nil {
		g(op, id)
	}
}
