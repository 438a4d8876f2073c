package domain

// PortfolioState is the agent's holdings. Owned and mutated only by the environment.
type PortfolioState struct {
	CashBalance    float64 `json:"cash_balance"`
	AssetHeld      float64 `json:"asset_held"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// Transition is one stored (state, action, reward, next state, done) record.
type Transition struct {
	State     ObservationWindow
	Action    Action
	Reward    float64
	NextState ObservationWindow
	Done      bool
}

// StepResult is returned by a single environment step.
// NextState is nil only once the cursor has moved past the last row.
type StepResult struct {
	NextState *ObservationWindow
	Reward    float64
	Done      bool
}
