// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package websocket pushes live training updates to the frontend.

Clients connect with GET /ws?userID=<id>. The Hub keeps every connection
together with its user and delivers a message only to the connections of the
addressed user. EventForwarder subscribes to the event bus and hands each
training event to the hub.

Each client runs two goroutines:
  - readPump: answers "ping" with "pong" and "training_status" with the
    user's latest training
  - writePump: writes queued messages and sends keepalive pings

A client built WithStatus also receives training_status right after it
connects, so a reloaded page can redraw the live series at once. Replies go
through the hub like every other message.

Messages use the envelope

	{"type": "training_progress", "data": {...}}

where type is one of training_started, training_progress,
training_completed, training_failed or training_stopped, plus ping, pong,
training_status and error.

A client whose send buffer is full is disconnected rather than slowing down
delivery to everyone else. Hub and EventForwarder implement suture.Service.
*/
package websocket
