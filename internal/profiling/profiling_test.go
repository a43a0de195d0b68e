package profiling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackAccumulates(t *testing.T) {
	ResetFrame()
	stop := Track("a")
	time.Sleep(time.Millisecond)
	stop()
	Track("a")()
	Track("b")()

	ss := Snapshot()
	assert.Len(t, ss, 2)
	assert.GreaterOrEqual(t, ss["a"], time.Millisecond)

	ResetFrame()
	assert.Empty(t, Snapshot())
}

func TestTopN(t *testing.T) {
	ResetFrame()
	mu.Lock()
	frameTotals["slow"] = 4200 * time.Microsecond
	frameTotals["fast"] = 2 * time.Millisecond
	frameTotals["tiny"] = 100 * time.Microsecond
	mu.Unlock()

	assert.Equal(t, "slow:4.2ms, fast:2ms", TopN(2))
	assert.Equal(t, "slow:4.2ms, fast:2ms, tiny:0.1ms", TopN(10))
	assert.Equal(t, "", TopN(0))
	ResetFrame()
}
