package strategy

import (
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/indicator"
)

// NodeType tags the condition variant.
type NodeType string

const (
	NodeLeaf     NodeType = "leaf"
	NodeGroup    NodeType = "group"
	NodeIfThen   NodeType = "if_then"
	NodeSequence NodeType = "sequence"
)

// LogicalOp combines group children.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
	OpNot LogicalOp = "NOT"
)

// CompareOp is a leaf comparison operator.
type CompareOp string

const (
	CmpLT CompareOp = "<"
	CmpLE CompareOp = "<="
	CmpGT CompareOp = ">"
	CmpGE CompareOp = ">="
	CmpEQ CompareOp = "="
)

// Target is what a leaf compares its indicator against: either a constant
// value or another indicator/price-field series.
type Target struct {
	Value     *float64
	Indicator *indicator.Spec
}

// Constant returns a constant-value target.
func Constant(v float64) Target {
	return Target{Value: &v}
}

// Series returns an indicator-series target.
func Series(spec indicator.Spec) Target {
	return Target{Indicator: &spec}
}

// Condition is one node of a strategy's boolean condition tree. The variant
// is selected by Type; only the fields of that variant are meaningful.
type Condition struct {
	Type NodeType

	// Leaf
	Indicator indicator.Spec
	Op        CompareOp
	Target    Target

	// Group
	Logical  LogicalOp
	Children []*Condition

	// IfThen
	If   *Condition
	Then *Condition

	// Sequence
	Steps      []*Condition
	WithinBars int
}

// Strategy is an entry condition tree plus exit rules.
type Strategy struct {
	Name  string
	Side  core.Side
	Entry *Condition
	Exit  ExitSettings
}

// Validate fails fast before a scan starts: the entry tree must contain at
// least one evaluable leaf, groups must be well formed, and the side and
// exit targets must be usable.
func (s *Strategy) Validate() error {
	if s.Side != core.SideBuy && s.Side != core.SideSell {
		return core.ErrInvalidStrategyConfig
	}
	if err := validateNode(s.Entry); err != nil {
		return err
	}
	if !hasEvaluableLeaf(s.Entry) {
		return core.ErrInvalidStrategyConfig
	}
	return s.Exit.Validate()
}

func validateNode(node *Condition) error {
	if node == nil {
		return nil
	}
	switch node.Type {
	case NodeLeaf:
		if node.Indicator.ID == "" {
			return core.ErrInvalidStrategyConfig
		}
		if node.Target.Value == nil && node.Target.Indicator == nil {
			return core.ErrInvalidStrategyConfig
		}
	case NodeGroup:
		if (node.Logical == OpAnd || node.Logical == OpOr) && len(node.Children) < 1 {
			return core.ErrInvalidStrategyConfig
		}
		if node.Logical == OpNot && len(node.Children) != 1 {
			return core.ErrInvalidStrategyConfig
		}
		for _, child := range node.Children {
			if err := validateNode(child); err != nil {
				return err
			}
		}
	case NodeIfThen:
		if err := validateNode(node.If); err != nil {
			return err
		}
		if err := validateNode(node.Then); err != nil {
			return err
		}
	case NodeSequence:
		for _, step := range node.Steps {
			if err := validateNode(step); err != nil {
				return err
			}
		}
	default:
		return core.ErrInvalidStrategyConfig
	}
	return nil
}

// hasEvaluableLeaf reports whether the tree contains at least one leaf that
// can produce a signal. A tree of empty groups, missing if/then branches and
// empty sequences can never fire and is rejected up front.
func hasEvaluableLeaf(node *Condition) bool {
	if node == nil {
		return false
	}
	switch node.Type {
	case NodeLeaf:
		return true
	case NodeGroup:
		for _, child := range node.Children {
			if hasEvaluableLeaf(child) {
				return true
			}
		}
	case NodeIfThen:
		return hasEvaluableLeaf(node.If) && hasEvaluableLeaf(node.Then)
	case NodeSequence:
		for _, step := range node.Steps {
			if hasEvaluableLeaf(step) {
				return true
			}
		}
	}
	return false
}
