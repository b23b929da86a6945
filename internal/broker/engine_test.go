package broker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/adred-codev/topicbroker/internal/codec"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSub is an in-memory Subscriber used by every test in this file; it
// records every message delivered to it.
type fakeSub struct {
	id uint64

	mu       sync.Mutex
	received []codec.Message
}

func newFakeSub(id uint64) *fakeSub { return &fakeSub{id: id} }

func (f *fakeSub) ID() uint64 { return f.id }

func (f *fakeSub) Deliver(m codec.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, m)
}

func (f *fakeSub) messages() []codec.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]codec.Message, len(f.received))
	copy(out, f.received)
	return out
}

func startEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(cancel)
	return e
}

// drain gives the dispatcher goroutine a moment to process everything
// submitted so far. Submit/Publish/Subscribe/Cancel are async by design, so
// tests that assert on delivered messages need a synchronization point;
// List() already blocks for a reply, so we piggyback on it here.
func drain(e *Engine) {
	e.List()
}

func TestListIsIdempotent(t *testing.T) {
	e := startEngine(t)

	e.Publish("/t1", "1000")
	e.Publish("/t1", "2000")
	e.Publish("/t2", "abc")
	drain(e)

	got := e.List()
	sort.Strings(got)
	assert.Equal(t, []string{"/t1", "/t2"}, got)
}

func TestScenario1_SubscribeThenList(t *testing.T) {
	e := startEngine(t)
	s1 := newFakeSub(1)

	e.Subscribe("/t1", s1)
	drain(e)

	assert.Contains(t, e.List(), "/t1")
}

func TestScenario2_PutAndListTopics(t *testing.T) {
	e := startEngine(t)

	e.Publish("/t1", "1000")
	e.Publish("/t2", "abc")
	drain(e)

	got := e.List()
	sort.Strings(got)
	assert.Equal(t, []string{"/t1", "/t2"}, got)
}

func TestScenario3_SubscribeThenPublishDelivers(t *testing.T) {
	e := startEngine(t)
	c := newFakeSub(1)

	e.Subscribe("/temp", c)
	drain(e)
	e.Publish("/temp", "42")
	drain(e)

	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, codec.MethodMessage, msgs[0].Method)
	assert.Equal(t, "/temp", msgs[0].Topic)
	assert.Equal(t, "42", msgs[0].Msg)
}

func TestScenario4_MultipleConsumersReceiveAllPublishes(t *testing.T) {
	e := startEngine(t)
	c1 := newFakeSub(1)
	c2 := newFakeSub(2)

	e.Subscribe("/temp", c1)
	e.Subscribe("/temp", c2)
	drain(e)

	values := []string{"v1", "v2", "v3", "v4", "v5", "v6", "v7", "v8", "v9"}
	for _, v := range values {
		e.Publish("/temp", v)
	}
	drain(e)

	for _, c := range []*fakeSub{c1, c2} {
		msgs := c.messages()
		require.Len(t, msgs, len(values))
		for i, v := range values {
			assert.Equal(t, v, msgs[i].Msg)
			assert.Equal(t, codec.MethodMessage, msgs[i].Method)
		}
	}
}

func TestScenario5_HierarchicalDeliveryBySubstring(t *testing.T) {
	e := startEngine(t)
	sub := newFakeSub(1)

	e.Subscribe("/a/b", sub)
	drain(e)
	e.Publish("/a", "X")
	drain(e)

	msgs := sub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/a", msgs[0].Topic)
	assert.Equal(t, "X", msgs[0].Msg)
}

func TestScenario6_CancelStopsDelivery(t *testing.T) {
	e := startEngine(t)
	sub := newFakeSub(1)

	e.Subscribe("/t", sub)
	e.Cancel("/t", sub)
	drain(e)
	e.Publish("/t", "ignored")
	drain(e)

	assert.Empty(t, sub.messages())
}

func TestP4_HierarchicalDeliveryIsSubstringNotPrefix(t *testing.T) {
	// The known oddity (§9): "/a" and "/ab" are related by pure substring
	// containment, not path-prefix — a publish on "/ab" reaches a
	// subscriber of "/a" even though "/ab" is not a child path of "/a".
	e := startEngine(t)
	sub := newFakeSub(1)

	e.Subscribe("/a", sub)
	drain(e)
	e.Publish("/ab", "oddity")
	drain(e)

	msgs := sub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/ab", msgs[0].Topic)
}

func TestP5_CancelIsLocalToOneSubscriber(t *testing.T) {
	e := startEngine(t)
	s1 := newFakeSub(1)
	s2 := newFakeSub(2)

	e.Subscribe("/t", s1)
	e.Subscribe("/t", s2)
	e.Cancel("/t", s1)
	drain(e)
	e.Publish("/t", "hello")
	drain(e)

	assert.Empty(t, s1.messages())
	require.Len(t, s2.messages(), 1)
	assert.Equal(t, "hello", s2.messages()[0].Msg)
}

func TestP6_DisconnectPurgesSubscriptions(t *testing.T) {
	e := startEngine(t)
	sub := newFakeSub(1)

	e.Subscribe("/t", sub)
	drain(e)
	e.Disconnect(sub)
	drain(e)
	e.Publish("/t", "after-disconnect")
	drain(e)

	assert.Empty(t, sub.messages())
}

func TestFanoutReachesAllRelatedSubscribersNotJustFirst(t *testing.T) {
	// Guards the fixed bug: the source only notified the first subscriber
	// of each related topic. Every subscriber must receive the publish.
	e := startEngine(t)
	subs := make([]*fakeSub, 5)
	for i := range subs {
		subs[i] = newFakeSub(uint64(i + 1))
		e.Subscribe("/room", subs[i])
	}
	drain(e)

	e.Publish("/room", "hi")
	drain(e)

	for _, s := range subs {
		require.Len(t, s.messages(), 1)
	}
}

func TestSubscribeAfterPublishTriggersOnlyReplayNotDuplicate(t *testing.T) {
	e := startEngine(t)
	sub := newFakeSub(1)

	e.Publish("/t", "first")
	drain(e)
	e.Subscribe("/t", sub)
	drain(e)

	msgs := sub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, codec.MethodLastMessage, msgs[0].Method)
	assert.Equal(t, "first", msgs[0].Msg)
}

func TestEngineShutdownStopsDispatcher(t *testing.T) {
	e := New(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}
