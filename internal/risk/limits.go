package risk

// Check is the outcome of the pre-trade admission gate: either Allowed, or
// Blocked with a human-readable reason naming the rule that fired.
type Check struct {
	Blocked bool
	Reason  string
}

// Allowed reports whether the gate admits the trade.
func (c Check) Allowed() bool { return !c.Blocked }

func allowed() Check           { return Check{} }
func blocked(reason string) Check { return Check{Blocked: true, Reason: reason} }

// LimitsInput carries the model and volatility figures the gate checks
// against, decoupled from the engine's own state types to avoid a package
// cycle between risk and engine.
type LimitsInput struct {
	DailyPnL         float64
	CurrentExposure  float64
	MaxDrawdown      float64
	HighVolRegime    bool
	ProposedContracts float64
	ProposedPrice    float64
	MaxDailyDrawdown float64
	MaxPosition      float64
}

// CheckLimits runs the five ordered admission rules. The first rule that
// fires blocks the trade; order matters for observability, not correctness.
func CheckLimits(in LimitsInput) Check {
	if in.DailyPnL < -in.MaxDailyDrawdown {
		return blocked("daily drawdown limit breached")
	}

	newExposure := in.CurrentExposure + in.ProposedContracts*in.ProposedPrice
	if newExposure > in.MaxPosition {
		return blocked("max position size exceeded")
	}

	if in.HighVolRegime && in.MaxDrawdown > in.MaxDailyDrawdown*0.5 {
		return blocked("vol spike + elevated drawdown")
	}

	if in.ProposedContracts < 0.01 {
		return blocked("trade size too small")
	}

	if in.ProposedPrice <= 0 || in.ProposedPrice >= 1.0 {
		return blocked("invalid contract price")
	}

	return allowed()
}
