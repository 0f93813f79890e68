package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrej220/fleetrun/internal/lg"
	"github.com/andrej220/fleetrun/internal/report"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func TestPublishOneMessagePerResult(t *testing.T) {
	w := &mockWriter{}
	p := &Publisher{writer: w, topic: "fleet-results", log: lg.Discard}

	id1, id2 := uuid.New(), uuid.New()
	set := report.ReportSet{
		Results: []report.Result{
			{TaskID: id1, Server: "alpha", Command: "uptime", Output: "up\n",
				Success: true, Duration: 1500 * time.Millisecond},
			{TaskID: id2, Server: "beta", Command: "uptime", Error: "timeout",
				Duration: 30 * time.Second},
		},
		AnySucceeded: true,
	}

	require.NoError(t, p.Publish(context.Background(), set))
	require.Len(t, w.messages, 2)
	assert.Equal(t, id1[:], w.messages[0].Key)
	assert.Equal(t, id2[:], w.messages[1].Key)

	var doc struct {
		Server   string  `json:"server"`
		Success  bool    `json:"success"`
		Duration float64 `json:"duration"`
		Error    string  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &doc))
	assert.Equal(t, "alpha", doc.Server)
	assert.True(t, doc.Success)
	assert.InDelta(t, 1.5, doc.Duration, 0.001)

	require.NoError(t, json.Unmarshal(w.messages[1].Value, &doc))
	assert.Equal(t, "beta", doc.Server)
	assert.False(t, doc.Success)
	assert.Equal(t, "timeout", doc.Error)
}

func TestPublishPropagatesBrokerError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker unreachable")}
	p := &Publisher{writer: w, topic: "fleet-results", log: lg.Discard}

	err := p.Publish(context.Background(), report.ReportSet{
		Results: []report.Result{{TaskID: uuid.New(), Server: "alpha"}},
	})
	assert.Error(t, err)
}
