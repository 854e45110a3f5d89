package provision

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// CardNumberer produces display numbers for new cards.
// Numbers are for humans; uniqueness of cards comes from the
// (customer, program) key, not from the number.
type CardNumberer interface {
	Next() string
}

// SnowflakeNumberer issues time-ordered card numbers from a snowflake node.
// Each process writing cards should use a distinct node id (0-1023).
//
// Thread-safety: safe for concurrent use (snowflake.Node locks internally).
type SnowflakeNumberer struct {
	node *snowflake.Node
}

// NewSnowflakeNumberer creates a numberer for the given node id.
func NewSnowflakeNumberer(nodeID int64) (*SnowflakeNumberer, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("card numbers: %w", err)
	}
	return &SnowflakeNumberer{node: node}, nil
}

// Next returns a new card number such as "RC-1790263861526519808".
func (n *SnowflakeNumberer) Next() string {
	return "RC-" + n.node.Generate().String()
}
