package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pulse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestFeedHub_RegisterAndUnregister(t *testing.T) {
	hub := NewFeedHub()

	a, err := hub.Register("alice", ScopeAll, nil)
	require.NoError(t, err)
	_, err = hub.Register("", ScopeAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count(ScopeAll))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Count(ScopeAll))

	_, ok := <-a.Send
	assert.False(t, ok, "send channel should be closed")

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count(ScopeAll))
}

func TestFeedHub_RegisterAfterShutdown(t *testing.T) {
	hub := NewFeedHub()
	require.NoError(t, hub.Shutdown(context.Background()))

	_, err := hub.Register("bob", ScopeAll, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestFeedHub_DispatchRoutesByScope(t *testing.T) {
	hub := NewFeedHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	all, _ := hub.Register("", ScopeAll, nil)
	forum1, _ := hub.Register("", ForumScope(1), nil)
	forum2, _ := hub.Register("", ForumScope(2), nil)
	post1, _ := hub.Register("", PostScope(1), nil)

	evt := VoteEvent{Type: EventVoteUpdated, SubjectType: models.SubjectPost, SubjectID: 5, ParentID: 1}
	hub.Dispatch(evt, []byte("x"))

	assert.Len(t, all.Send, 1)
	assert.Len(t, forum1.Send, 1)
	assert.Len(t, forum2.Send, 0)
	assert.Len(t, post1.Send, 0)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewFeedHub()
	c := &Client{Hub: hub, Send: make(chan []byte, 1), Scope: ScopeAll}

	c.TrySend([]byte("first"))
	c.TrySend([]byte("second"))

	assert.Len(t, c.Send, 1)
	assert.Equal(t, "first", string(<-c.Send))
}

func TestClient_TrySendAfterCloseDoesNotPanic(t *testing.T) {
	hub := NewFeedHub()
	c, err := hub.Register("", ScopeAll, nil)
	require.NoError(t, err)
	hub.UnregisterClient(c)

	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestFeedHub_StartWiringDeliversPublishedVotes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewFeedHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()
	client, err := hub.Register("", PostScope(3), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	evt := VoteEvent{Type: EventVoteUpdated, SubjectType: models.SubjectComment, SubjectID: 11, ParentID: 3, Upvotes: 1}
	require.NoError(t, n.PublishVote(context.Background(), evt))

	var got VoteEvent
	assert.Eventually(t, func() bool {
		select {
		case msg := <-client.Send:
			return json.Unmarshal(msg, &got) == nil
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)
	assert.Equal(t, uint(11), got.SubjectID)
	assert.Equal(t, int64(1), got.Upvotes)
}
