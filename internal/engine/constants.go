package engine

// Position-management thresholds. These mirror the values fixed in the
// external interface contract; they are compile-time constants, not
// runtime settings.
const (
	StrikeCrossBuffer     = 25.0 // dollars of BTC price beyond the strike that counts as "crossed"
	ScaleInMove           = 75.0 // dollars BTC must move favorably from the first leg's entry before a scale-in leg is allowed
	MaxLegs               = 3    // hard cap on concurrent legs per market
	TrailingStopPct       = 0.50 // giveback from peak unrealized that triggers an exit
	PartialTakeProfitPct  = 0.40 // unrealized gain fraction that triggers a partial close
	FullTakeProfitPct     = 0.80 // unrealized gain fraction that triggers a full close
	UncertainExitSeconds  = 240  // seconds before close inside which the time-based exit rule applies
	ResolutionHoldDistanceCents = 200 // dollars of BTC distance from the strike beyond which a position counts as strongly winning
	ResolutionHoldSeconds = 120  // seconds before close inside which resolution-hold applies
	MinHoldTicks          = 5    // minimum ticks a position must age before any exit rule other than strike crossover fires
	MinEntryTTLSeconds    = 300  // minimum time-to-expiry required to open a new position
	HardStopLossPct       = 0.70 // unrealized loss fraction that forces an immediate exit
)
