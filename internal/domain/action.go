package domain

import "fmt"

// Action is one of the three trading decisions available to the agent.
type Action int

const (
	ActionBuy Action = iota
	ActionSell
	ActionHold
)

// NumActions is the length of every action-value vector.
const NumActions = 3

// Actions lists every action in approximator output order.
var Actions = [NumActions]Action{ActionBuy, ActionSell, ActionHold}

// Index returns the position of the action in an action-value vector.
func (a Action) Index() int {
	return int(a)
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	return a >= ActionBuy && a <= ActionHold
}

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionHold:
		return "HOLD"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ActionFromIndex maps an action-value vector index back to an Action.
func ActionFromIndex(i int) (Action, error) {
	a := Action(i)
	if !a.Valid() {
		return 0, fmt.Errorf("action index %d out of range [0,%d)", i, NumActions)
	}
	return a, nil
}
