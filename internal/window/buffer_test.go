package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/signbridge/internal/feature"
)

func vec(x float32) feature.Vector {
	return feature.Vector{x, x, x}
}

func TestNew_RejectsBadDimensions(t *testing.T) {
	_, err := New(0, 3)
	assert.Error(t, err)

	_, err = New(3, 0)
	assert.Error(t, err)
}

func TestBuffer_FillsThenEvictsOldest(t *testing.T) {
	b, err := New(3, 3)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		assert.False(t, b.IsFull(), "not full before push %d", i)
		require.NoError(t, b.Push(vec(float32(i))))
	}
	assert.True(t, b.IsFull())
	assert.Equal(t, Window{vec(1), vec(2), vec(3)}, b.Snapshot())

	require.NoError(t, b.Push(vec(4)))
	require.NoError(t, b.Push(vec(5)))

	assert.True(t, b.IsFull())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, Window{vec(3), vec(4), vec(5)}, b.Snapshot())
}

func TestBuffer_LengthNeverExceedsCapacity(t *testing.T) {
	const capacity = 30
	b, err := New(capacity, 3)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, b.Push(vec(float32(i))))
		snap := b.Snapshot()
		assert.LessOrEqual(t, len(snap), capacity)
		if b.IsFull() {
			assert.Len(t, snap, capacity)
			assert.Equal(t, vec(float32(i)), snap[capacity-1], "newest frame is last")
		}
	}
}

func TestBuffer_SnapshotIsIndependent(t *testing.T) {
	b, err := New(2, 3)
	require.NoError(t, err)

	src := vec(1)
	require.NoError(t, b.Push(src))
	require.NoError(t, b.Push(vec(2)))

	snap := b.Snapshot()

	src[0] = 99
	require.NoError(t, b.Push(vec(3)))
	b.Reset()

	assert.Equal(t, Window{vec(1), vec(2)}, snap)

	snap[0][0] = 42
	require.NoError(t, b.Push(vec(7)))
	assert.Equal(t, Window{vec(7)}, b.Snapshot())
}

func TestBuffer_RejectsWrongDimension(t *testing.T) {
	b, err := New(2, 3)
	require.NoError(t, err)

	err = b.Push(feature.Vector{1, 2})

	assert.ErrorIs(t, err, feature.ErrShape)
	assert.Equal(t, 0, b.Len(), "rejected push leaves the buffer untouched")
}

func TestBuffer_Reset(t *testing.T) {
	b, err := New(2, 3)
	require.NoError(t, err)
	require.NoError(t, b.Push(vec(1)))
	require.NoError(t, b.Push(vec(2)))

	b.Reset()

	assert.False(t, b.IsFull())
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())

	require.NoError(t, b.Push(vec(3)))
	require.NoError(t, b.Push(vec(4)))
	assert.Equal(t, Window{vec(3), vec(4)}, b.Snapshot(), "frames from before the reset never reappear")
}

func TestWindow_CheckShapeAndFlatten(t *testing.T) {
	w := Window{vec(1), vec(2)}

	require.NoError(t, w.CheckShape(2, 3))
	assert.ErrorIs(t, w.CheckShape(3, 3), feature.ErrShape)
	assert.ErrorIs(t, Window{vec(1), {1}}.CheckShape(2, 3), feature.ErrShape)

	assert.Equal(t, []float32{1, 1, 1, 2, 2, 2}, w.Flatten())
	assert.Nil(t, Window{}.Flatten())
}
