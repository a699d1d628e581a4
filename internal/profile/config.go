package profile

// Config collects every look-back window and detection threshold used by the
// four dimension analyzers. The defaults reproduce the standard tuning; none
// of the thresholds carries a documented derivation, so they are deliberately
// exposed for experimentation rather than hard-coded.
type Config struct {
	// History floor for the technical and capital dimensions.
	MinHistoryBars int `yaml:"min_history_bars"`

	// Indicator periods.
	EMAShortPeriod  int `yaml:"ema_short_period"`
	EMALongPeriod   int `yaml:"ema_long_period"`
	RSIPeriod       int `yaml:"rsi_period"`
	ATRPeriod       int `yaml:"atr_period"`
	VolumeSMAPeriod int `yaml:"volume_sma_period"`

	// Effort-vs-result bands.
	EffortWindow       int     `yaml:"effort_window"`
	EffortMinBars      int     `yaml:"effort_min_bars"`
	EffortVolumeHigh   float64 `yaml:"effort_volume_high"`
	EffortVolumeLow    float64 `yaml:"effort_volume_low"`
	EffortPriceConfirm float64 `yaml:"effort_price_confirm"`
	EffortPriceStall   float64 `yaml:"effort_price_stall"`
	EffortPriceWeak    float64 `yaml:"effort_price_weak"`

	// Spring detection.
	SpringWindow     int     `yaml:"spring_window"`
	SpringMinBars    int     `yaml:"spring_min_bars"`
	SpringLookback   int     `yaml:"spring_lookback"`
	SpringMinAge     int     `yaml:"spring_min_age"`
	SpringReboundPct float64 `yaml:"spring_rebound_pct"`

	// Sign-of-strength detection.
	StrengthWindow      int     `yaml:"strength_window"`
	StrengthMinBars     int     `yaml:"strength_min_bars"`
	StrengthBars        int     `yaml:"strength_bars"`
	StrengthGainPct     float64 `yaml:"strength_gain_pct"`
	StrengthVolumeRatio float64 `yaml:"strength_volume_ratio"`

	// Technical score blend.
	TrendWeight    float64 `yaml:"trend_weight"`
	EffortWeight   float64 `yaml:"effort_weight"`
	StrengthWeight float64 `yaml:"strength_weight"`
	SpringWeight   float64 `yaml:"spring_weight"`
	StrengthScore  float64 `yaml:"strength_score"`
	SpringScore    float64 `yaml:"spring_score"`

	// Capital-flow tiers.
	FlowWindow    int     `yaml:"flow_window"`
	StrongRatio   float64 `yaml:"strong_ratio"`
	StrongStreak  int     `yaml:"strong_streak"`
	ModerateRatio float64 `yaml:"moderate_ratio"`
	OutflowRatio  float64 `yaml:"outflow_ratio"`

	// Relative strength.
	RSWindow int     `yaml:"rs_window"`
	RSGap    float64 `yaml:"rs_gap"`

	// Catalyst look-ahead.
	CatalystHorizonDays int `yaml:"catalyst_horizon_days"`
}

// DefaultConfig returns the standard profiling parameters.
func DefaultConfig() Config {
	return Config{
		MinHistoryBars: 60,

		EMAShortPeriod:  10,
		EMALongPeriod:   20,
		RSIPeriod:       14,
		ATRPeriod:       14,
		VolumeSMAPeriod: 20,

		EffortWindow:       20,
		EffortMinBars:      5,
		EffortVolumeHigh:   1.5,
		EffortVolumeLow:    0.8,
		EffortPriceConfirm: 0.03,
		EffortPriceStall:   0.01,
		EffortPriceWeak:    0.02,

		SpringWindow:     30,
		SpringMinBars:    20,
		SpringLookback:   15,
		SpringMinAge:     5,
		SpringReboundPct: 0.05,

		StrengthWindow:      20,
		StrengthMinBars:     10,
		StrengthBars:        5,
		StrengthGainPct:     0.03,
		StrengthVolumeRatio: 1.3,

		TrendWeight:    0.4,
		EffortWeight:   0.3,
		StrengthWeight: 0.2,
		SpringWeight:   0.1,
		StrengthScore:  100,
		SpringScore:    80,

		FlowWindow:    20,
		StrongRatio:   0.10,
		StrongStreak:  3,
		ModerateRatio: 0.05,
		OutflowRatio:  -0.05,

		RSWindow: 20,
		RSGap:    0.05,

		CatalystHorizonDays: 14,
	}
}
