// Package comm provides the rank-aware communication handle used during
// partitioning. World runs every rank as a goroutine in one process and
// stands in for an MPI communicator.
package comm

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrAborted is returned by collective calls once any rank aborted the world
var ErrAborted = errors.New("communicator aborted")

// Communicator is one rank's view of the collective.
// Collective calls must be made in the same order on every rank.
type Communicator interface {
	Rank() int
	Size() int

	// Broadcast sends data from root to every rank and returns it on all ranks
	Broadcast(root int, data []int) ([]int, error)

	// Scatter sends parts[r] from root to rank r; parts is ignored off root
	Scatter(root int, parts [][]int) ([]int, error)

	// Gather collects data from every rank on root, indexed by rank. Non-root ranks get nil.
	Gather(root int, data []int) ([][]int, error)

	Barrier() error

	// Abort fails the collective; blocked and later calls on every rank return ErrAborted
	Abort(cause error)
}

// linkDepth bounds the number of in-flight messages between two ranks
const linkDepth = 16

// World is an in-process set of ranks connected by channels
type World struct {
	size  int
	links [][]chan []int // [from][to]

	done  chan struct{}
	once  sync.Once
	mu    sync.Mutex
	cause error
}

// NewWorld creates a world of size ranks
func NewWorld(size int) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid world size %d", size)
	}
	w := &World{
		size:  size,
		links: make([][]chan []int, size),
		done:  make(chan struct{}),
	}
	for from := 0; from < size; from++ {
		w.links[from] = make([]chan []int, size)
		for to := 0; to < size; to++ {
			w.links[from][to] = make(chan []int, linkDepth)
		}
	}
	return w, nil
}

// Self returns the communicator of a single-rank world
func Self() Communicator {
	w, _ := NewWorld(1)
	return w.Comm(0)
}

// Comm returns the communicator of rank
func (w *World) Comm(rank int) Communicator {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("comm: rank %d out of range [0,%d)", rank, w.size))
	}
	return &localComm{world: w, rank: rank}
}

func (w *World) Size() int {
	return w.size
}

// Abort records the first cause and releases every blocked rank
func (w *World) Abort(cause error) {
	w.once.Do(func() {
		w.mu.Lock()
		w.cause = cause
		w.mu.Unlock()
		close(w.done)
	})
}

// Cause returns the error the world was aborted with, nil if it was not
func (w *World) Cause() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cause
}

func (w *World) send(from, to int, data []int) error {
	msg := append([]int(nil), data...)
	select {
	case <-w.done:
		return ErrAborted
	default:
	}
	select {
	case w.links[from][to] <- msg:
		return nil
	case <-w.done:
		return ErrAborted
	}
}

func (w *World) recv(from, to int) ([]int, error) {
	select {
	case msg := <-w.links[from][to]:
		return msg, nil
	case <-w.done:
		return nil, ErrAborted
	}
}

// Run executes fn on every rank of a new world of the given size and waits
// for all of them. A rank returning an error aborts the world; Run returns
// the error that caused the abort.
func Run(size int, fn func(c Communicator) error) error {
	w, err := NewWorld(size)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for r := 0; r < size; r++ {
		c := w.Comm(r)
		g.Go(func() error {
			if err := fn(c); err != nil {
				err = fmt.Errorf("rank %d: %w", r, err)
				w.Abort(err)
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	if cause := w.Cause(); cause != nil {
		return cause
	}
	return err
}

type localComm struct {
	world *World
	rank  int
}

func (c *localComm) Rank() int { return c.rank }

func (c *localComm) Size() int { return c.world.size }

func (c *localComm) Abort(cause error) { c.world.Abort(cause) }

func (c *localComm) checkRoot(root int) error {
	if root < 0 || root >= c.world.size {
		return fmt.Errorf("root %d out of range [0,%d)", root, c.world.size)
	}
	return nil
}

func (c *localComm) Broadcast(root int, data []int) ([]int, error) {
	if err := c.checkRoot(root); err != nil {
		return nil, err
	}
	if c.rank != root {
		return c.world.recv(root, c.rank)
	}
	for r := 0; r < c.world.size; r++ {
		if r == root {
			continue
		}
		if err := c.world.send(root, r, data); err != nil {
			return nil, err
		}
	}
	return append([]int(nil), data...), nil
}

func (c *localComm) Scatter(root int, parts [][]int) ([]int, error) {
	if err := c.checkRoot(root); err != nil {
		return nil, err
	}
	if c.rank != root {
		return c.world.recv(root, c.rank)
	}
	if len(parts) != c.world.size {
		return nil, fmt.Errorf("scatter: %d parts for %d ranks", len(parts), c.world.size)
	}
	for r := 0; r < c.world.size; r++ {
		if r == root {
			continue
		}
		if err := c.world.send(root, r, parts[r]); err != nil {
			return nil, err
		}
	}
	return append([]int(nil), parts[root]...), nil
}

func (c *localComm) Gather(root int, data []int) ([][]int, error) {
	if err := c.checkRoot(root); err != nil {
		return nil, err
	}
	if c.rank != root {
		return nil, c.world.send(c.rank, root, data)
	}
	out := make([][]int, c.world.size)
	for r := 0; r < c.world.size; r++ {
		if r == root {
			out[r] = append([]int(nil), data...)
			continue
		}
		msg, err := c.world.recv(r, root)
		if err != nil {
			return nil, err
		}
		out[r] = msg
	}
	return out, nil
}

func (c *localComm) Barrier() error {
	if _, err := c.Gather(0, nil); err != nil {
		return err
	}
	_, err := c.Broadcast(0, nil)
	return err
}
