package monitoring

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLogWriters_RoutesStreams(t *testing.T) {
	defer Mute()

	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)

	Opsf("ops %d", 1)
	Diagf("diag %d", 2)
	Tracef("trace %d", 3)

	assert.Contains(t, ops.String(), "ops 1")
	assert.Contains(t, diag.String(), "diag 2")
	assert.Contains(t, trace.String(), "trace 3")
	assert.NotContains(t, ops.String(), "diag")
}

func TestSetLogWriters_NilDisablesStream(t *testing.T) {
	defer Mute()

	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)

	// Must not panic with disabled streams.
	Diagf("hidden")
	Tracef("hidden")
	Opsf("visible")

	assert.Equal(t, 1, strings.Count(ops.String(), "\n"))
}

func TestUseLogrus_LevelFiltersStreams(t *testing.T) {
	defer Mute()

	buf := &syncBuffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	UseLogrus(l)
	Opsf("partition forced")
	Diagf("event done")
	Tracef("round detail")

	// WriterLevel hands lines to a goroutine through a pipe.
	assert.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "event done") && strings.Contains(out, "partition forced")
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, buf.String(), "round detail")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
