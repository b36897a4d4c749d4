// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/models"
)

// Metadata keys set on every event message.
const (
	MetadataType   = "type"
	MetadataUserID = "user_id"
)

// EncodeEvent wraps an event in a Watermill message.
func EncodeEvent(event *models.TrainingEvent) (*message.Message, error) {
	if event.UserID == "" {
		return nil, fmt.Errorf("event has no user id")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataType, string(event.Type))
	msg.Metadata.Set(MetadataUserID, event.UserID)
	return msg, nil
}

// DecodeEvent extracts the event from a message payload.
func DecodeEvent(msg *message.Message) (*models.TrainingEvent, error) {
	var event models.TrainingEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("deserialize event %s: %w", msg.UUID, err)
	}
	if event.Type == "" || event.UserID == "" {
		return nil, fmt.Errorf("event %s is missing type or user id", msg.UUID)
	}
	return &event, nil
}
