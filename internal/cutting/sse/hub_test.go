package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	a := &Client{ID: "a", Events: make(chan Event, 1)}
	b := &Client{ID: "b", Events: make(chan Event, 1)}
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Count())

	hub.PlanChanged("p1", "publish")
	for _, c := range []*Client{a, b} {
		ev := <-c.Events
		assert.Equal(t, "plan_update", ev.EventType)
		assert.JSONEq(t, `{"plan_id":"p1","action":"publish"}`, ev.Data)
	}

	// 缓冲区满时不阻塞
	hub.PlanChanged("p1", "edit")
	hub.PlanChanged("p1", "edit")

	hub.Unregister("a")
	_, ok := <-drain(a.Events)
	require.False(t, ok)
	assert.Equal(t, 1, hub.Count())
}

func drain(ch chan Event) chan Event {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return ch
			}
		default:
			return ch
		}
	}
}
