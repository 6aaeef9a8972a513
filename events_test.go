package swarm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiSink(t *testing.T) {
	var a, b EventRecorder
	var count int
	sink := MultiSink{&a, nil, &b, EventSinkFunc(func(Event) { count++ })}

	sink.Publish(Event{Type: EventStarted, Procedure: "Main"})
	sink.Publish(Event{Type: EventCompleted, Procedure: "Main"})

	assert.Len(t, a.Events(), 2)
	assert.Len(t, b.Events(), 2)
	assert.Equal(t, 2, count)
	assert.Equal(t, EventCompleted, b.Events()[1].Type)
}

func TestEventRecorderConcurrent(t *testing.T) {
	var r EventRecorder
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Publish(Event{Type: EventGoalReached, Branch: i})
		}(i)
	}
	wg.Wait()

	events := r.Events()
	assert.Len(t, events, 10)
	events[0].Procedure = "changed"
	assert.Empty(t, r.Events()[0].Procedure, "Events returns a copy")
}

func TestJSONLinesSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	sink.Publish(Event{Type: EventStarted, RunID: "r1", Procedure: "survey", Kind: KindTask, Timestamp: at})
	sink.Publish(Event{Type: EventFailed, RunID: "r1", Procedure: "survey", Kind: KindTask, Error: "boom", Timestamp: at})

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "started", lines[0]["type"])
	assert.Equal(t, "TASK", lines[0]["kind"])
	assert.NotContains(t, lines[0], "error")
	assert.NotContains(t, lines[0], "vehicle")
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "2026-01-02T03:04:05Z", lines[1]["timestamp"])
}
