package ops

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/cadence/internal/errors"
	"github.com/hpungsan/cadence/internal/observe"
	"github.com/hpungsan/cadence/internal/post"
)

// CreatePost validates req and creates the post in the store.
func (c *Coordinator) CreatePost(ctx context.Context, req Request, in post.CreateRequest) (*post.Post, error) {
	if err := post.ValidateCreate(&in, c.opts.MaxChars); err != nil {
		return nil, err
	}
	return c.mutate(ctx, req, "create_post", "", func() (*post.Post, error) {
		return c.store.Create(ctx, req.Credentials, in)
	})
}

// UpdatePost applies a partial update. A new scheduled date obeys the same
// rule as ReschedulePost.
func (c *Coordinator) UpdatePost(ctx context.Context, req Request, id string, in post.UpdateRequest) (*post.Post, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	if err := post.ValidateUpdate(&in, c.opts.MaxChars); err != nil {
		return nil, err
	}
	if in.ScheduledDate != nil {
		if err := c.checkNotPast(*in.ScheduledDate); err != nil {
			return nil, err
		}
	}
	return c.mutate(ctx, req, "update_post", id, func() (*post.Post, error) {
		return c.store.Update(ctx, req.Credentials, id, in)
	})
}

// ReschedulePost moves a post to newStart. A newStart before the
// coordinator's clock is a VALIDATION error and no store call is made.
func (c *Coordinator) ReschedulePost(ctx context.Context, req Request, id string, newStart time.Time) (*post.Post, error) {
	id, err := requireID(id)
	if err != nil {
		return nil, err
	}
	if newStart.IsZero() {
		return nil, errors.NewValidation("scheduled_date", "scheduled_date is required")
	}
	if err := c.checkNotPast(newStart); err != nil {
		return nil, err
	}
	at := newStart.UTC()
	return c.mutate(ctx, req, "reschedule_post", id, func() (*post.Post, error) {
		return c.store.Reschedule(ctx, req.Credentials, id, at)
	})
}

// DeletePost removes a post.
func (c *Coordinator) DeletePost(ctx context.Context, req Request, id string) error {
	id, err := requireID(id)
	if err != nil {
		return err
	}
	_, err = c.mutate(ctx, req, "delete_post", id, func() (*post.Post, error) {
		return nil, c.store.Delete(ctx, req.Credentials, id)
	})
	return err
}

// mutate runs one command through idle -> in_flight -> success | failure.
// A second command for a post that already has one in flight fails with
// CONFLICT. On success every cached read is invalidated and the previously
// cached filters are refetched; if that refresh fails the mutated post is
// returned together with a CONSISTENCY error.
func (c *Coordinator) mutate(ctx context.Context, req Request, op, postID string, call func() (*post.Post, error)) (*post.Post, error) {
	if postID != "" {
		if err := c.acquire(postID); err != nil {
			c.opts.Hook.Observe(observe.Event{Kind: observe.KindMutationFailure, Op: op, PostID: postID, Err: err})
			return nil, err
		}
		defer c.release(postID)
	}

	started := c.opts.Now()
	c.opts.Hook.Observe(observe.Event{Kind: observe.KindMutationInFlight, Op: op, PostID: postID})

	p, err := call()
	if err != nil {
		c.opts.Hook.Observe(observe.Event{Kind: observe.KindMutationFailure, Op: op, PostID: postID, Duration: c.opts.Now().Sub(started), Err: err})
		return nil, err
	}
	if p != nil {
		postID = p.ID
	}
	c.opts.Hook.Observe(observe.Event{Kind: observe.KindMutationSuccess, Op: op, PostID: postID, Duration: c.opts.Now().Sub(started)})

	if err := c.invalidateAndRefresh(ctx, req, op); err != nil {
		return p, errors.NewConsistency(postID, err)
	}
	return p, nil
}

func (c *Coordinator) acquire(postID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[postID]; busy {
		return errors.NewMutationInFlight(postID)
	}
	c.inflight[postID] = struct{}{}
	return nil
}

func (c *Coordinator) release(postID string) {
	c.mu.Lock()
	delete(c.inflight, postID)
	c.mu.Unlock()
}

// invalidateAndRefresh drops the whole derived cache, then refetches each
// filter that was cached. Refetches never degrade: a snapshot is not fresh
// data. The first refetch error is returned.
func (c *Coordinator) invalidateAndRefresh(ctx context.Context, req Request, op string) error {
	c.mu.Lock()
	c.epoch++
	previous := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.opts.Hook.Observe(observe.Event{Kind: observe.KindInvalidate, Op: op})

	keys := make([]string, 0, len(previous))
	for k := range previous {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var firstErr error
	for _, key := range keys {
		_, _, err := c.fetch(ctx, req, previous[key].filter, key, "refresh", false)
		c.opts.Hook.Observe(observe.Event{Kind: observe.KindRefresh, Op: op, Key: key, Err: err})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Coordinator) checkNotPast(at time.Time) error {
	if now := c.opts.Now(); at.Before(now) {
		err := errors.NewValidation("scheduled_date", "cannot reschedule into the past")
		err.Details["now"] = now.UTC().Format(time.RFC3339)
		return err
	}
	return nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}
