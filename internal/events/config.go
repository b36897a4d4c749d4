// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package events

import "time"

// DefaultTopic is the topic training events are published on.
const DefaultTopic = "machine.training"

// Config selects and tunes the Watermill backend.
type Config struct {
	// NATSURL switches to the NATS backend when non-empty.
	NATSURL string

	Topic string

	// GoChannel settings.
	OutputChannelBuffer int64

	// NATS settings.
	MaxReconnects    int
	ReconnectWait    time.Duration
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
}

// DefaultConfig returns production defaults with the in-process backend.
func DefaultConfig() Config {
	return Config{
		Topic:               DefaultTopic,
		OutputChannelBuffer: 256,
		MaxReconnects:       -1,
		ReconnectWait:       2 * time.Second,
		SubscribersCount:    1,
		AckWaitTimeout:      30 * time.Second,
		CloseTimeout:        10 * time.Second,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Topic == "" {
		c.Topic = d.Topic
	}
	if c.OutputChannelBuffer <= 0 {
		c.OutputChannelBuffer = d.OutputChannelBuffer
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = d.MaxReconnects
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = d.ReconnectWait
	}
	if c.SubscribersCount <= 0 {
		c.SubscribersCount = d.SubscribersCount
	}
	if c.AckWaitTimeout <= 0 {
		c.AckWaitTimeout = d.AckWaitTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	return c
}
