package strategy

import (
	"math"

	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/indicator"
)

// Context carries everything one run needs to evaluate a condition tree:
// the bar series, the per-run indicator cache and per-sequence arming state.
// A Context is owned by exactly one run; evaluating the same tree against a
// different Context yields fully independent results.
type Context struct {
	Bars  []core.Bar
	Cache *indicator.Cache

	seq map[*Condition]*seqState
}

type seqState struct {
	step     int // next step waiting to match
	firstIdx int // index where step 0 matched
	lastIdx  int // index of the most recent match
}

// NewContext creates an evaluation context over the given bars.
func NewContext(bars []core.Bar) *Context {
	return &Context{
		Bars:  bars,
		Cache: indicator.NewCache(bars),
		seq:   make(map[*Condition]*seqState),
	}
}

// Evaluate evaluates the condition tree at bar index idx. Unavailable
// indicator values (warm-up period, NaN) make a leaf false; evaluation
// never panics on missing data.
func (c *Context) Evaluate(node *Condition, idx int) bool {
	if node == nil {
		return false
	}

	switch node.Type {
	case NodeLeaf:
		return c.evalLeaf(node, idx)
	case NodeGroup:
		return c.evalGroup(node, idx)
	case NodeIfThen:
		// Strictly single-bar: the if-branch does not stay armed across
		// subsequent bars.
		if node.If == nil || node.Then == nil {
			return false
		}
		if !c.Evaluate(node.If, idx) {
			return false
		}
		return c.Evaluate(node.Then, idx)
	case NodeSequence:
		return c.evalSequence(node, idx)
	default:
		return false
	}
}

func (c *Context) evalLeaf(node *Condition, idx int) bool {
	value := c.Cache.Value(node.Indicator, idx)
	if math.IsNaN(value) {
		return false
	}

	var target float64
	switch {
	case node.Target.Value != nil:
		target = *node.Target.Value
	case node.Target.Indicator != nil:
		target = c.Cache.Value(*node.Target.Indicator, idx)
	default:
		return false
	}
	if math.IsNaN(target) {
		return false
	}

	switch node.Op {
	case CmpLT:
		return value < target
	case CmpLE:
		return value <= target
	case CmpGT:
		return value > target
	case CmpGE:
		return value >= target
	case CmpEQ:
		return value == target
	default:
		return false
	}
}

func (c *Context) evalGroup(node *Condition, idx int) bool {
	switch node.Logical {
	case OpAnd:
		if len(node.Children) == 0 {
			return false
		}
		for _, child := range node.Children {
			if !c.Evaluate(child, idx) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range node.Children {
			if c.Evaluate(child, idx) {
				return true
			}
		}
		return false
	case OpNot:
		if len(node.Children) != 1 {
			return false
		}
		return !c.Evaluate(node.Children[0], idx)
	default:
		return false
	}
}

// evalSequence tracks which step is armed per context. Steps must match at
// strictly increasing bar indices, and the whole chain must complete within
// WithinBars of the first match or the state resets.
func (c *Context) evalSequence(node *Condition, idx int) bool {
	if len(node.Steps) == 0 {
		return false
	}

	st, ok := c.seq[node]
	if !ok {
		st = &seqState{step: 0, firstIdx: -1, lastIdx: -1}
		c.seq[node] = st
	}

	// Window expired: drop the partial chain.
	if st.step > 0 && node.WithinBars > 0 && idx-st.firstIdx >= node.WithinBars {
		st.step = 0
		st.firstIdx = -1
		st.lastIdx = -1
	}

	// Strictly increasing indices: at most one step advances per bar.
	if idx <= st.lastIdx {
		return false
	}

	if c.Evaluate(node.Steps[st.step], idx) {
		if st.step == 0 {
			st.firstIdx = idx
		}
		st.lastIdx = idx
		st.step++

		if st.step == len(node.Steps) {
			st.step = 0
			st.firstIdx = -1
			st.lastIdx = -1
			return true
		}
	}

	return false
}
