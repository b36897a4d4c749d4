// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// statusTimeout bounds one training status lookup.
	statusTimeout = 5 * time.Second
)

// clientIDCounter orders clients for delivery.
var clientIDCounter atomic.Uint64

// StatusFunc returns the latest training of a user. It matches the ML
// engine's TrainingStatus.
type StatusFunc func(ctx context.Context, userID string) (*models.Training, error)

// Client is one websocket connection of a user.
type Client struct {
	id     uint64
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	status StatusFunc
}

// NewClient creates a client for userID.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, 256),
	}
}

// WithStatus lets the client answer training_status requests. A page that
// reconnects mid-training gets the current epoch history this way instead
// of waiting for the next progress event.
func (c *Client) WithStatus(fn StatusFunc) *Client {
	c.status = fn
	return c
}

// ID returns the client's delivery order key.
func (c *Client) ID() uint64 {
	return c.id
}

// readPump reads client requests until the connection fails. Requests are
// ping and training_status; anything else is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Warn().Err(err).Str("user_id", c.userID).Msg("unexpected websocket close error")
			}
			return
		}

		switch msg.Type {
		case MessageTypePing:
			c.hub.reply(c, MessageTypePong, nil)
		case MessageTypeTrainingStatus:
			c.sendStatus()
		}
	}
}

// sendStatus replies with the user's latest training. No training yet is
// reported as null data, not as an error.
func (c *Client) sendStatus() {
	if c.status == nil {
		c.hub.reply(c, MessageTypeError, map[string]string{"message": "training status unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	tr, err := c.status(ctx, c.userID)
	switch {
	case err == nil:
		c.hub.reply(c, MessageTypeTrainingStatus, tr)
	case errors.Is(err, models.ErrNotFound):
		c.hub.reply(c, MessageTypeTrainingStatus, nil)
	default:
		metrics.WSErrors.WithLabelValues("status").Inc()
		logging.Warn().Err(err).Str("user_id", c.userID).Msg("failed to load training status for websocket client")
		c.hub.reply(c, MessageTypeError, map[string]string{"message": "training status unavailable"})
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				logging.Warn().Err(err).Str("user_id", c.userID).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps. A client with a status source first
// receives the user's current training.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
	if c.status != nil {
		go c.sendStatus()
	}
}
