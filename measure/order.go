package measure

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"golang.org/x/exp/constraints"
)

// inOrder takes values that arrive out of order and sends them on out in order of their id.
// ids must start at 0 and ascend by 1. Values ahead of the counter are parked in a btree
// until the gap before them is filled.
type inOrder[I constraints.Integer, V any] struct {
	mu      sync.Mutex
	counter I
	tree    *btree.BTreeG[V]
	getID   func(v V) I

	out chan V
}

func newInOrder[I constraints.Integer, V any](getID func(v V) I, out chan V) *inOrder[I, V] {
	if getID == nil {
		panic("getID cannot be nil")
	}
	if out == nil {
		panic("out cannot be nil")
	}

	n := &inOrder[I, V]{getID: getID, out: out}
	n.tree = btree.NewG(2, n.less)
	return n
}

// Close closes the out channel.
func (n *inOrder[I, V]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.out)
	n.tree.Clear(false)
}

// Len returns the number of parked values.
func (n *inOrder[I, V]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tree.Len()
}

func (n *inOrder[I, V]) less(a, b V) bool {
	return n.getID(a) < n.getID(b)
}

// Add adds a value. An id below the counter is an error. Sends on out happen with the lock
// held, so out needs room or a reader.
func (n *inOrder[I, V]) Add(v V) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.getID(v)
	if id < n.counter {
		return fmt.Errorf("current counter is %d, you are adding counter %d", n.counter, id)
	}

	if id != n.counter {
		n.tree.ReplaceOrInsert(v)
		return nil
	}

	n.out <- v
	n.counter++
	for n.tree.Len() > 0 {
		next, _ := n.tree.Min()
		if n.getID(next) != n.counter {
			break
		}
		n.tree.DeleteMin()
		n.out <- next
		n.counter++
	}
	return nil
}
