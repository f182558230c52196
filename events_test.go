package rtkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventLayoutPartition(t *testing.T) {
	l, err := newEventLayout(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 9, l.numBroadcast)
	assert.Equal(t, 2, l.numMutex)
	assert.Equal(t, 3, l.numSemaphore)

	assert.Equal(t, EventVector(1), l.BroadcastBit(0))
	assert.Equal(t, EventVector(1<<9), l.MutexBit(0))
	assert.Equal(t, EventVector(1<<11), l.SemaphoreBit(0))
}

func TestNewEventLayoutOverflow(t *testing.T) {
	_, err := newEventLayout(10, 10)
	assert.Error(t, err)
}

func TestEventLayoutClassify(t *testing.T) {
	l, err := newEventLayout(2, 2)
	require.NoError(t, err)

	class, idx := l.classify(l.BroadcastBit(3))
	assert.Equal(t, classBroadcast, class)
	assert.Equal(t, 3, idx)

	class, idx = l.classify(l.MutexBit(1))
	assert.Equal(t, classMutex, class)
	assert.Equal(t, 1, idx)

	class, idx = l.classify(l.SemaphoreBit(0))
	assert.Equal(t, classSemaphore, class)
	assert.Equal(t, 0, idx)
}

func TestEventLayoutMasks(t *testing.T) {
	l, err := newEventLayout(1, 1)
	require.NoError(t, err)
	assert.Equal(t, l.broadcastMask()&l.mutexMask(), EventVector(0))
	assert.Equal(t, l.mutexMask()&l.semaphoreMask(), EventVector(0))
	assert.Equal(t, l.broadcastMask()|l.mutexMask()|l.semaphoreMask(), EventVector((1<<maxClassifiableBits)-1))
}

func TestSatisfiedAnyVsAll(t *testing.T) {
	mask := EventVector(0b0110)
	assert.True(t, satisfied(0b0010, mask, false))
	assert.False(t, satisfied(0b1000, mask, false))

	assert.False(t, satisfied(0b0010, mask, true))
	assert.True(t, satisfied(0b0110, mask, true))
}

func TestWakeConditionTimeoutBypassesWaitForAll(t *testing.T) {
	st := &taskState{
		waitMask:   0b0110,
		waitForAll: true,
	}
	st.postedEvents = DelayTimerBit
	assert.True(t, wakeCondition(st), "a posted delay-timer bit must wake even a wait-for-all task whose other bits are unsatisfied")
}

func TestWakeConditionOrdinarySatisfaction(t *testing.T) {
	st := &taskState{waitMask: 0b0010, waitForAll: false}
	st.postedEvents = 0b0010
	assert.True(t, wakeCondition(st))

	st.postedEvents = 0b0100
	assert.False(t, wakeCondition(st))
}
