package list

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](l *List[T]) []T {
	var out []T
	l.StartOver()
	for l.HasNext() {
		out = append(out, l.Next())
	}
	return out
}

func TestAddTraversesInInsertionOrder(t *testing.T) {
	l := New[int](4)
	for i := 1; i <= 5; i++ {
		l.Add(i)
	}
	assert.Equal(t, 5, l.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, drain(l))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, slices.Collect(l.All()))
}

func TestZeroValueIsUsable(t *testing.T) {
	var l List[string]
	assert.False(t, l.HasNext())
	assert.False(t, l.Remove())
	l.Add("a")
	assert.Equal(t, []string{"a"}, drain(&l))
}

func TestAddRewindsCursor(t *testing.T) {
	l := New[int](0)
	l.Add(1)
	l.Add(2)
	l.StartOver()
	require.Equal(t, 1, l.Next())
	require.Equal(t, 2, l.Next())
	require.False(t, l.HasNext())

	l.Add(3)
	require.True(t, l.HasNext())
	assert.Equal(t, 1, l.Next())
}

func TestRemoveDuringTraversal(t *testing.T) {
	l := New[int](0)
	for i := 0; i < 10; i++ {
		l.Add(i)
	}

	var seen []int
	l.StartOver()
	for l.HasNext() {
		v := l.Next()
		seen = append(seen, v)
		if v%2 == 0 {
			require.True(t, l.Remove())
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
	assert.Equal(t, []int{1, 3, 5, 7, 9}, drain(l))
	assert.Equal(t, 5, l.Len())
}

func TestRemoveEverything(t *testing.T) {
	l := New[int](0)
	for i := 0; i < 4; i++ {
		l.Add(i)
	}
	l.StartOver()
	for l.HasNext() {
		l.Next()
		require.True(t, l.Remove())
	}
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, drain(l))

	l.Add(42)
	assert.Equal(t, []int{42}, drain(l))
}

func TestRemovePastEndRemovesTail(t *testing.T) {
	l := New[string](0)
	l.Add("a")
	l.Add("b")
	l.Add("c")

	l.StartOver()
	for l.HasNext() {
		l.Next()
	}
	require.True(t, l.Remove())
	assert.Equal(t, []string{"a", "b"}, slices.Collect(l.All()))

	// cursor is still past the end, so the new tail goes next
	require.True(t, l.Remove())
	assert.Equal(t, []string{"a"}, slices.Collect(l.All()))
	require.True(t, l.Remove())
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Remove())
}

func TestRemoveAtHeadIsNoop(t *testing.T) {
	l := New[int](0)
	l.Add(1)
	l.Add(2)
	l.StartOver()
	assert.False(t, l.Remove())
	assert.Equal(t, 2, l.Len())
}

func TestRemoveSingleElement(t *testing.T) {
	l := New[int](0)
	l.Add(7)
	l.StartOver()
	require.Equal(t, 7, l.Next())
	require.True(t, l.Remove())
	assert.False(t, l.HasNext())
	assert.Equal(t, 0, l.Len())
}

func TestClear(t *testing.T) {
	l := New[int](0)
	for i := 0; i < 3; i++ {
		l.Add(i)
	}
	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.HasNext())
	assert.Empty(t, slices.Collect(l.All()))

	l.Add(9)
	assert.Equal(t, []int{9}, drain(l))
}

func TestSlotsAreReused(t *testing.T) {
	l := New[int](0)
	l.Add(1)
	l.Add(2)
	l.StartOver()
	l.Next()
	l.Remove()
	l.Add(3)
	assert.Len(t, l.nodes, 2)
	assert.Equal(t, []int{2, 3}, drain(l))
}

// TestInterleavedOpsMatchSlice drives random add/next/remove/startOver
// sequences against a slice model with an index cursor.
func TestInterleavedOpsMatchSlice(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	l := New[int](0)
	var model []int
	cur := 0
	nextVal := 0

	for step := 0; step < 20000; step++ {
		switch op := r.IntN(10); {
		case op < 3:
			l.Add(nextVal)
			model = append(model, nextVal)
			nextVal++
			cur = 0
		case op < 6:
			require.Equal(t, cur < len(model), l.HasNext())
			if cur < len(model) {
				require.Equal(t, model[cur], l.Next())
				cur++
			}
		case op < 8:
			ok := l.Remove()
			require.Equal(t, cur > 0, ok, "step %d", step)
			if cur > 0 {
				model = slices.Delete(model, cur-1, cur)
				cur--
			}
		case op < 9:
			l.StartOver()
			cur = 0
		default:
			if r.IntN(50) == 0 {
				l.Clear()
				model = model[:0]
				cur = 0
			}
		}
		require.Equal(t, len(model), l.Len())
	}
	assert.Equal(t, model, slices.Collect(l.All()))
}

func TestTraversalVisitsSurvivorsOnce(t *testing.T) {
	l := New[int](0)
	for i := 0; i < 50; i++ {
		l.Add(i)
	}
	l.StartOver()
	for l.HasNext() {
		if v := l.Next(); v%3 == 0 {
			l.Remove()
		}
	}

	seen := map[int]int{}
	var order []int
	l.StartOver()
	for l.HasNext() {
		v := l.Next()
		seen[v]++
		order = append(order, v)
	}
	for v, n := range seen {
		assert.Equal(t, 1, n, "value %d", v)
		assert.NotZero(t, v%3)
	}
	assert.True(t, slices.IsSorted(order))
	assert.Len(t, order, 33)
}
