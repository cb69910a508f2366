package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat_AppendEvictsOldest(t *testing.T) {
	r := NewFloat(3)
	r.Append(1)
	r.Append(2)
	r.Append(3)
	require.Equal(t, 3, r.Len())
	assert.Equal(t, []float64{1, 2, 3}, r.Slice())

	r.Append(4)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []float64{2, 3, 4}, r.Slice())

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 4.0, last)
}

func TestFloat_EmptyLast(t *testing.T) {
	r := NewFloat(5)
	_, ok := r.Last()
	assert.False(t, ok)
}

func TestGeneric_PushIsNewestFirst(t *testing.T) {
	r := NewGeneric[int](3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	assert.Equal(t, []int{3, 2, 1}, r.Slice())

	r.Push(4)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{4, 3, 2}, r.Slice())
}

func TestGeneric_Head(t *testing.T) {
	r := NewGeneric[int](5)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, []int{5, 4}, r.Head(2))
	assert.Equal(t, []int{5, 4, 3, 2, 1}, r.Head(100))
}
