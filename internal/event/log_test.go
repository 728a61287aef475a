package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLog_AssignsSeqInArrivalOrder(t *testing.T) {
	log, err := NewLog([]Event{
		{Timestamp: 0, Kind: KindCast, AbilityID: 1},
		{Timestamp: 5, Kind: KindCast, AbilityID: 2},
		{Timestamp: 5, Kind: KindDamage, AbilityID: 2},
		{Timestamp: 9, Kind: KindDeath},
	})
	require.NoError(t, err)
	require.Equal(t, 4, log.Len())

	for i := 0; i < log.Len(); i++ {
		assert.Equal(t, int64(i+1), log.At(i).Seq)
	}
	// Ties keep arrival order
	assert.True(t, Less(log.At(1), log.At(2)))
	assert.False(t, Less(log.At(2), log.At(1)))
}

func TestNewLog_IgnoresCallerSeq(t *testing.T) {
	log, err := NewLog([]Event{
		{Seq: 40, Timestamp: 1, Kind: KindCast},
		{Seq: 2, Timestamp: 1, Kind: KindCast},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), log.At(0).Seq)
	assert.Equal(t, int64(2), log.At(1).Seq)
}

func TestNewLog_RejectsDecreasingTimestamp(t *testing.T) {
	_, err := NewLog([]Event{
		{Timestamp: 10, Kind: KindCast},
		{Timestamp: 4, Kind: KindCast},
	})
	require.Error(t, err)

	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, 1, inErr.Index)
	assert.Contains(t, inErr.Error(), "precedes")
}

func TestNewLog_RejectsNegativeTimestampAndMissingKind(t *testing.T) {
	_, err := NewLog([]Event{{Timestamp: -1, Kind: KindCast}})
	assert.Error(t, err)

	_, err = NewLog([]Event{{Timestamp: 1}})
	assert.Error(t, err)
}

func TestLog_IsImmutable(t *testing.T) {
	input := []Event{{Timestamp: 1, Kind: KindCast, AbilityID: 7}}
	log, err := NewLog(input)
	require.NoError(t, err)

	input[0].AbilityID = 99
	assert.Equal(t, int64(7), log.At(0).AbilityID)

	events := log.Events()
	events[0].AbilityID = 42
	assert.Equal(t, int64(7), log.At(0).AbilityID)
}

func TestLog_Bounds(t *testing.T) {
	empty, err := NewLog(nil)
	require.NoError(t, err)
	start, end := empty.Bounds()
	assert.Zero(t, start)
	assert.Zero(t, end)

	log, err := NewLog([]Event{{Timestamp: 3, Kind: KindCast}, {Timestamp: 12, Kind: KindCast}})
	require.NoError(t, err)
	start, end = log.Bounds()
	assert.Equal(t, int64(3), start)
	assert.Equal(t, int64(12), end)
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
}
