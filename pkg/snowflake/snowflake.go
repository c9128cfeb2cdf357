package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch 2024-01-01T00:00:00Z in milliseconds
	Epoch int64 = 1704067200000

	// NodeBits and StepBits share the low 22 bits of an ID
	NodeBits uint8 = 10
	StepBits uint8 = 12

	nodeMax   int64 = -1 ^ (-1 << NodeBits)
	stepMask  int64 = -1 ^ (-1 << StepBits)
	timeShift       = NodeBits + StepBits
	nodeShift       = StepBits
)

// ErrInvalidNode node id outside [0, 1023]
var ErrInvalidNode = errors.New("snowflake: node id out of range")

// ID a generated identifier. IDs from one Node strictly increase.
type ID int64

// Int64 returns the raw value
func (id ID) Int64() int64 { return int64(id) }

// String returns the decimal form
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Time returns the millisecond the ID was minted in
func (id ID) Time() time.Time {
	return time.UnixMilli((int64(id) >> timeShift) + Epoch)
}

// Node returns the node part of an ID
func (id ID) Node() int64 { return (int64(id) >> nodeShift) & nodeMax }

// Step returns the sequence part of an ID
func (id ID) Step() int64 { return int64(id) & stepMask }

// Node mints IDs for one process
type Node struct {
	mu     sync.Mutex
	last   int64
	nodeID int64
	step   int64
	now    func() int64
}

// NewNode creates an ID generator for nodeID
func NewNode(nodeID int64) (*Node, error) {
	if nodeID < 0 || nodeID > nodeMax {
		return nil, ErrInvalidNode
	}
	return &Node{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Generate returns the next ID. A clock that steps backwards is absorbed by
// staying on the last observed millisecond.
func (n *Node) Generate() ID {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if now < n.last {
		now = n.last
	}

	if now == n.last {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.last {
				now = n.now()
			}
		}
	} else {
		n.step = 0
	}

	n.last = now

	return ID(((now - Epoch) << timeShift) | (n.nodeID << nodeShift) | n.step)
}
