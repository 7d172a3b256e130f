package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

func qopp(id string) domain.Opportunity {
	return domain.Opportunity{ID: id, Category: domain.CategoryArbitrage}
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue(10)
	for i := 0; i < 5; i++ {
		require.True(t, q.push(qopp(fmt.Sprintf("o%d", i))))
	}

	batch := q.popBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "o0", batch[0].ID)
	assert.Equal(t, "o1", batch[1].ID)
	assert.Equal(t, "o2", batch[2].ID)

	batch = q.popBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "o3", batch[0].ID)
	assert.Equal(t, 0, q.len())
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := newQueue(2)
	assert.True(t, q.push(qopp("a")))
	assert.True(t, q.push(qopp("b")))
	// Capacity+1th item is dropped without blocking.
	assert.False(t, q.push(qopp("c")))
	assert.EqualValues(t, 1, q.droppedCount())
	assert.Equal(t, 2, q.len())

	// Draining frees capacity again.
	q.popBatch(1)
	assert.True(t, q.push(qopp("d")))
}

func TestQueuePopEmpty(t *testing.T) {
	q := newQueue(4)
	assert.Nil(t, q.popBatch(10))
}
