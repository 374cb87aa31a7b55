package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteReadFillSilence(t *testing.T) {
	rb := newRingBuffer(4)

	n := rb.Write([]int16{1, 2, 3})
	assert.Equal(t, 3, n)

	out := make([]int16, 5)
	got := rb.ReadFill(out)
	assert.Equal(t, 3, got)
	assert.Equal(t, []int16{1, 2, 3, 0, 0}, out)
}

func TestRingBufferWriteDropsWhenFull(t *testing.T) {
	rb := newRingBuffer(2)
	n := rb.Write([]int16{1, 2, 3, 4})
	assert.Equal(t, 2, n, "excess samples beyond capacity are discarded")

	out := make([]int16, 2)
	rb.ReadFill(out)
	assert.Equal(t, []int16{1, 2}, out)
}

func TestPushDropOldestDiscardsOldestOnOverflow(t *testing.T) {
	ch := make(chan []int16, 2)
	pushDropOldest(ch, []int16{1})
	pushDropOldest(ch, []int16{2})
	pushDropOldest(ch, []int16{3})

	require.Len(t, ch, 2)
	first := <-ch
	second := <-ch
	assert.Equal(t, []int16{2}, first)
	assert.Equal(t, []int16{3}, second)
}

func TestInt16ByteRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	buf := make([]byte, len(samples)*2)
	int16ToBytes(samples, buf)
	back := bytesToInt16(buf)
	assert.Equal(t, samples, back)
}

func TestDeviceIDFromNameDefaultsToNil(t *testing.T) {
	assert.Nil(t, deviceIDFromName(""))
	assert.Nil(t, deviceIDFromName("default"))
	assert.NotNil(t, deviceIDFromName("plughw:Loopback,1,1"))
}
