// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/machine/internal/models"
)

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func newTestClient(hub *Hub, userID string) *Client {
	return NewClient(hub, nil, userID)
}

// registerClient registers a client and waits until the hub knows it.
func registerClient(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.Register <- client
	deadline := time.Now().Add(time.Second)
	for hub.UserClientCount(client.userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNothing(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.send:
		t.Errorf("client %s received unexpected %q message", client.userID, msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SendToUserIsScoped(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	yee1 := newTestClient(hub, "yee")
	yee2 := newTestClient(hub, "yee")
	other := newTestClient(hub, "other")
	for _, c := range []*Client{yee1, yee2, other} {
		registerClient(t, hub, c)
	}

	if hub.UserClientCount("yee") != 2 || hub.GetClientCount() != 3 {
		t.Fatalf("client counts = %d/%d, want 2/3", hub.UserClientCount("yee"), hub.GetClientCount())
	}

	event := models.TrainingEvent{Type: models.EventTrainingProgress, UserID: "yee", TrainingID: "t1"}
	if !hub.SendTrainingEvent(event) {
		t.Fatal("SendTrainingEvent() dropped the event")
	}

	for _, c := range []*Client{yee1, yee2} {
		msg := receive(t, c)
		if msg.Type != string(models.EventTrainingProgress) {
			t.Errorf("message type = %q, want training_progress", msg.Type)
		}
		got, ok := msg.Data.(models.TrainingEvent)
		if !ok || got.TrainingID != "t1" {
			t.Errorf("message data = %#v", msg.Data)
		}
	}
	expectNothing(t, other)
}

func TestHub_ReplyTargetsOneClient(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	asker := newTestClient(hub, "yee")
	sibling := newTestClient(hub, "yee")
	registerClient(t, hub, asker)
	registerClient(t, hub, sibling)

	hub.reply(asker, MessageTypePong, nil)
	if msg := receive(t, asker); msg.Type != MessageTypePong {
		t.Errorf("message type = %q, want pong", msg.Type)
	}
	expectNothing(t, sibling)

	// A reply to a client the hub no longer knows is dropped, not sent on a
	// closed channel.
	gone := newTestClient(hub, "yee")
	hub.reply(gone, MessageTypePong, nil)
	expectNothing(t, gone)
}

func TestHub_Unregister(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	c := newTestClient(hub, "yee")
	registerClient(t, hub, c)

	hub.Unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("send channel should be closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("GetClientCount() = %d, want 0", hub.GetClientCount())
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	slow := &Client{id: clientIDCounter.Add(1), userID: "slow", hub: hub, send: make(chan Message)}
	registerClient(t, hub, slow)

	hub.SendToUser("slow", "notice", nil)

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	c := newTestClient(hub, "yee")
	registerClient(t, hub, c)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
	if hub.String() != "websocket-hub" {
		t.Errorf("String() = %q", hub.String())
	}
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(cancelled); got != ShutdownReasonContextCanceled {
		t.Errorf("getShutdownReason(cancelled) = %q", got)
	}

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("getShutdownReason(expired) = %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if string(data) != `{"type":"pong","data":null}` {
		t.Errorf("MarshalMessage() = %s", data)
	}
}
