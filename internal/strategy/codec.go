package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/indicator"
)

// Wire format for strategy definitions. A leaf's target is either "value"
// (a constant) or "series" (another indicator); setting both is rejected.
type strategyJSON struct {
	Name  string         `json:"name"`
	Side  string         `json:"side"`
	Entry *conditionJSON `json:"entry"`
	Exit  exitJSON       `json:"exit"`
}

type conditionJSON struct {
	Type string `json:"type"`

	Indicator *specJSON `json:"indicator,omitempty"`
	Op        string    `json:"op,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Series    *specJSON `json:"series,omitempty"`

	Logical  string           `json:"logical,omitempty"`
	Children []*conditionJSON `json:"children,omitempty"`

	If   *conditionJSON `json:"if,omitempty"`
	Then *conditionJSON `json:"then,omitempty"`

	Steps      []*conditionJSON `json:"steps,omitempty"`
	WithinBars int              `json:"within_bars,omitempty"`
}

type specJSON struct {
	ID     string  `json:"id"`
	Period int     `json:"period,omitempty"`
	Fast   int     `json:"fast,omitempty"`
	Slow   int     `json:"slow,omitempty"`
	Signal int     `json:"signal,omitempty"`
	Mult   float64 `json:"mult,omitempty"`
}

type exitJSON struct {
	TakeProfit        targetJSON `json:"take_profit"`
	StopLoss          targetJSON `json:"stop_loss"`
	MaxHoldingMinutes int        `json:"max_holding_minutes,omitempty"`
}

type targetJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ParseStrategy decodes a JSON strategy definition and validates it.
func ParseStrategy(data []byte) (*Strategy, error) {
	var raw strategyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.WrapError(core.ErrInvalidStrategyConfig, err)
	}

	entry, err := decodeCondition(raw.Entry)
	if err != nil {
		return nil, err
	}

	s := &Strategy{
		Name:  raw.Name,
		Side:  core.Side(raw.Side),
		Entry: entry,
		Exit: ExitSettings{
			TakeProfit:        PriceTarget{Value: raw.Exit.TakeProfit.Value, Unit: decodeUnit(raw.Exit.TakeProfit.Unit)},
			StopLoss:          PriceTarget{Value: raw.Exit.StopLoss.Value, Unit: decodeUnit(raw.Exit.StopLoss.Unit)},
			MaxHoldingMinutes: raw.Exit.MaxHoldingMinutes,
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeUnit(u string) Unit {
	if u == string(UnitPips) {
		return UnitPips
	}
	return UnitPercent
}

func decodeCondition(raw *conditionJSON) (*Condition, error) {
	if raw == nil {
		return nil, nil
	}

	node := &Condition{Type: NodeType(raw.Type)}

	switch node.Type {
	case NodeLeaf:
		if raw.Indicator == nil {
			return nil, core.WrapError(core.ErrInvalidStrategyConfig,
				fmt.Errorf("leaf condition requires an indicator"))
		}
		node.Indicator = decodeSpec(raw.Indicator)
		node.Op = CompareOp(raw.Op)
		switch {
		case raw.Value != nil && raw.Series != nil:
			return nil, core.WrapError(core.ErrInvalidStrategyConfig,
				fmt.Errorf("leaf target sets both value and series"))
		case raw.Value != nil:
			node.Target = Constant(*raw.Value)
		case raw.Series != nil:
			node.Target = Series(decodeSpec(raw.Series))
		}

	case NodeGroup:
		node.Logical = LogicalOp(raw.Logical)
		for _, child := range raw.Children {
			decoded, err := decodeCondition(child)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, decoded)
		}

	case NodeIfThen:
		var err error
		if node.If, err = decodeCondition(raw.If); err != nil {
			return nil, err
		}
		if node.Then, err = decodeCondition(raw.Then); err != nil {
			return nil, err
		}

	case NodeSequence:
		node.WithinBars = raw.WithinBars
		for _, step := range raw.Steps {
			decoded, err := decodeCondition(step)
			if err != nil {
				return nil, err
			}
			node.Steps = append(node.Steps, decoded)
		}

	default:
		return nil, core.WrapError(core.ErrInvalidStrategyConfig,
			fmt.Errorf("unknown condition type %q", raw.Type))
	}

	return node, nil
}

func decodeSpec(raw *specJSON) indicator.Spec {
	return indicator.Spec{
		ID:     raw.ID,
		Period: raw.Period,
		Fast:   raw.Fast,
		Slow:   raw.Slow,
		Signal: raw.Signal,
		Mult:   raw.Mult,
	}
}
