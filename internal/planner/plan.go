package planner

// Strategy is the way a job drives the encoder.
type Strategy int

const (
	// StrategyHardware is a single NVENC pass in VBR mode.
	StrategyHardware Strategy = iota + 1
	// StrategyTwoPass is a software analysis pass followed by an encode pass.
	StrategyTwoPass
	// StrategyTiered retries descending quality tiers until the output fits.
	StrategyTiered
)

func (s Strategy) String() string {
	switch s {
	case StrategyHardware:
		return "hardware"
	case StrategyTwoPass:
		return "two_pass"
	case StrategyTiered:
		return "tiered"
	default:
		return "unknown"
	}
}

// MarshalText encodes the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EncodePlan is computed once per job and never changed afterwards.
type EncodePlan struct {
	Strategy          Strategy `json:"strategy"`
	Bitrate           Bitrate  `json:"bitrate"`
	Scale             Scale    `json:"scale"`
	EffectiveDuration float64  `json:"effectiveDuration"`
	TargetBytes       int64    `json:"targetBytes"`
}

// Build assembles the plan for a width x height source producing duration
// seconds of output within targetBytes.
func Build(strategy Strategy, width, height int, targetBytes int64, duration float64) (EncodePlan, error) {
	bitrate, err := PlanBitrate(targetBytes, duration)
	if err != nil {
		return EncodePlan{}, err
	}
	return EncodePlan{
		Strategy:          strategy,
		Bitrate:           bitrate,
		Scale:             ScaleFor(width, height),
		EffectiveDuration: duration,
		TargetBytes:       targetBytes,
	}, nil
}
