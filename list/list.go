// Package list provides a doubly-linked sequence with a single forward cursor
// that allows the element just returned to be removed in O(1) without
// disturbing the rest of the traversal.
package list

import "iter"

// handle addresses a node in the arena; 0 means none.
type handle int32

type node[T any] struct {
	val  T
	prev handle
	next handle
}

// List is a cursor-iterable sequence backed by a slot arena. The zero value
// is an empty list ready for use. A List is not safe for concurrent use and
// its cursor is not reentrant.
type List[T any] struct {
	nodes  []node[T]
	free   []handle
	head   handle
	tail   handle
	cursor handle
	size   int
}

// New returns an empty list with room for capacity elements.
func New[T any](capacity int) *List[T] {
	return &List[T]{nodes: make([]node[T], 0, capacity)}
}

func (l *List[T]) at(h handle) *node[T] {
	return &l.nodes[h-1]
}

func (l *List[T]) alloc(v T) handle {
	if n := len(l.free); n > 0 {
		h := l.free[n-1]
		l.free = l.free[:n-1]
		*l.at(h) = node[T]{val: v}
		return h
	}
	l.nodes = append(l.nodes, node[T]{val: v})
	return handle(len(l.nodes))
}

// Add appends v at the tail and rewinds the cursor to the first element.
func (l *List[T]) Add(v T) {
	h := l.alloc(v)
	n := l.at(h)
	n.prev = l.tail
	if l.tail != 0 {
		l.at(l.tail).next = h
	} else {
		l.head = h
	}
	l.tail = h
	l.size++
	l.cursor = l.head
}

// Clear empties the list. Backing storage is kept for reuse.
func (l *List[T]) Clear() {
	l.nodes = l.nodes[:0]
	l.free = l.free[:0]
	l.head, l.tail, l.cursor = 0, 0, 0
	l.size = 0
}

// Len reports the number of elements.
func (l *List[T]) Len() int { return l.size }

// StartOver rewinds the cursor to the first element.
func (l *List[T]) StartOver() { l.cursor = l.head }

// HasNext reports whether Next would return an element.
func (l *List[T]) HasNext() bool { return l.cursor != 0 }

// Next returns the element under the cursor and advances it. It panics when
// HasNext is false.
func (l *List[T]) Next() T {
	if l.cursor == 0 {
		panic("list: Next called past the end")
	}
	n := l.at(l.cursor)
	l.cursor = n.next
	return n.val
}

// Remove deletes the element the cursor just moved past: the predecessor of
// the cursor, or the tail once the cursor has run off the end. It reports
// false when there is no such element.
func (l *List[T]) Remove() bool {
	h := l.tail
	if l.cursor != 0 {
		h = l.at(l.cursor).prev
	}
	if h == 0 {
		return false
	}
	l.unlink(h)
	return true
}

func (l *List[T]) unlink(h handle) {
	n := l.at(h)
	if n.prev != 0 {
		l.at(n.prev).next = n.next
	} else {
		l.head = n.next
	}
	if n.next != 0 {
		l.at(n.next).prev = n.prev
	} else {
		l.tail = n.prev
	}
	*n = node[T]{}
	l.free = append(l.free, h)
	l.size--
}

// All yields every element from head to tail without touching the cursor.
// The list must not be modified while the sequence is being consumed.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for h := l.head; h != 0; h = l.at(h).next {
			if !yield(l.at(h).val) {
				return
			}
		}
	}
}
