package comm

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Collectives(t *testing.T) {
	for _, size := range []int{1, 2, 5} {
		var mu sync.Mutex
		received := make(map[int][]int)
		gathered := make([][]int, 0)

		err := Run(size, func(c Communicator) error {
			if c.Size() != size {
				t.Errorf("Expected size %d, got %d", size, c.Size())
			}
			root := size - 1

			bc, err := c.Broadcast(root, []int{7, 8, 9})
			if err != nil {
				return err
			}
			if !assert.Equal(t, []int{7, 8, 9}, bc) {
				return errors.New("broadcast mismatch")
			}

			var parts [][]int
			if c.Rank() == root {
				parts = make([][]int, size)
				for r := range parts {
					parts[r] = []int{r, r * 10}
				}
			}
			part, err := c.Scatter(root, parts)
			if err != nil {
				return err
			}

			all, err := c.Gather(0, []int{c.Rank()})
			if err != nil {
				return err
			}
			if err := c.Barrier(); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			received[c.Rank()] = part
			if c.Rank() == 0 {
				gathered = all
			} else if all != nil {
				t.Errorf("Rank %d: gather result should be nil off root", c.Rank())
			}
			return nil
		})
		require.NoError(t, err)

		for r := 0; r < size; r++ {
			assert.Equal(t, []int{r, r * 10}, received[r], "rank %d scatter part", r)
			assert.Equal(t, []int{r}, gathered[r], "rank %d gathered", r)
		}
	}
}

func TestRun_AbortReleasesPeers(t *testing.T) {
	cause := errors.New("root failed")
	err := Run(4, func(c Communicator) error {
		if c.Rank() == 0 {
			return cause
		}
		// Every other rank waits for a broadcast that never comes
		_, err := c.Broadcast(0, nil)
		if !errors.Is(err, ErrAborted) {
			t.Errorf("Rank %d: expected ErrAborted, got %v", c.Rank(), err)
		}
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cause), "Run should report the root cause, got %v", err)
}

func TestScatter_WrongPartCount(t *testing.T) {
	err := Run(3, func(c Communicator) error {
		var parts [][]int
		if c.Rank() == 0 {
			parts = [][]int{{1}}
		}
		_, err := c.Scatter(0, parts)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scatter: 1 parts for 3 ranks")
}

func TestSelfAndInvalidRoot(t *testing.T) {
	c := Self()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())

	out, err := c.Scatter(0, [][]int{{4, 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, out)

	_, err = c.Broadcast(1, nil)
	assert.Error(t, err)

	_, err = NewWorld(0)
	assert.Error(t, err)
}
