package decision

// Reason codes the pipeline stage at which a ScoreEvent was dropped, per
// spec.md §4.6: "Any gate that fails drops the event with a reason code;
// nothing is retried."
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonScoreCorrection       Reason = "score_correction"
	ReasonPausedNewEntries      Reason = "paused_new_entries"
	ReasonEventTooOld           Reason = "event_too_old"
	ReasonShiftBelowThreshold   Reason = "shift_below_threshold"
	ReasonMarketNotFound        Reason = "market_not_found"
	ReasonQuoteUnavailable      Reason = "quote_unavailable"
	ReasonQuoteDivergence       Reason = "quote_divergence"
	ReasonNetEdgeBelowMin       Reason = "net_edge_below_min"
	ReasonStakeTooSmall         Reason = "stake_too_small"
	ReasonStakeExceedsBalance   Reason = "stake_exceeds_balance"
	ReasonRiskRejected          Reason = "risk_rejected"
	ReasonDuplicatePosition     Reason = "duplicate_position"
	ReasonOrderPlacementFailed  Reason = "order_placement_failed"
	ReasonLatencyAlphaExhausted Reason = "latency_alpha_exhausted"
)

// Outcome is the terminal result of running one ScoreEvent through the pipeline.
type Outcome struct {
	Reason   Reason
	Position *PositionIntent // non-nil only when Reason == ReasonNone
}
