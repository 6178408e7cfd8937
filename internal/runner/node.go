package runner

import (
	"sync"
	"sync/atomic"
)

// Node states, managed atomically.
const (
	statePending int32 = iota
	stateRunning
	stateDone
	stateFailed
	stateSkipped
)

// node is one phase of one simulation in the execution graph.
type node struct {
	simulation string
	phase      string

	// jobID is the ledger row backing this node, empty without a ledger.
	jobID string

	// err stores what went wrong when the node failed or was skipped.
	err error

	// depCount counts unmet dependencies; a node is ready at zero.
	depCount atomic.Int32
	// state is the node's current execution state.
	state atomic.Int32
	// skipOnce guarantees a node is skipped and settled at most once.
	skipOnce sync.Once

	// dependents are unlocked when this node finishes.
	dependents []*node
}

func (n *node) id() string {
	return n.simulation + "/" + n.phase
}

// skip marks a node skipped without running it and settles its
// WaitGroup slot. Returns true only on the first call.
func (n *node) skip(cause error, wg *sync.WaitGroup) bool {
	var first bool
	n.skipOnce.Do(func() {
		n.state.Store(stateSkipped)
		n.err = cause
		wg.Done()
		first = true
	})
	return first
}
