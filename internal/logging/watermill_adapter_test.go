// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestWatermillAdapter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var adapter watermill.LoggerAdapter = NewWatermillAdapterWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))

	adapter = adapter.With(watermill.LogFields{"topic": "machine.training"})
	adapter.Info("subscribed", watermill.LogFields{"consumer": "ws"})
	adapter.Error("publish failed", errors.New("nats down"), nil)

	out := buf.String()
	for _, want := range []string{`"topic":"machine.training"`, `"consumer":"ws"`, `"error":"nats down"`, "publish failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}
