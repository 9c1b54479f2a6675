package domain

type Conviction string

const (
	ConvictionLow    Conviction = "LOW"
	ConvictionMedium Conviction = "MEDIUM"
	ConvictionHigh   Conviction = "HIGH"
)

// AtLeast reports whether c meets the given minimum tier.
func (c Conviction) AtLeast(min Conviction) bool {
	return c.rank() >= min.rank()
}

func (c Conviction) rank() int {
	switch c {
	case ConvictionLow:
		return 1
	case ConvictionMedium:
		return 2
	case ConvictionHigh:
		return 3
	}
	return 0
}

type SignalType string

const (
	SignalTrend         SignalType = "trend"
	SignalMeanReversion SignalType = "mean_reversion"
	SignalMixed         SignalType = "mixed"
)

// Timeframe tags match the gateway's granularity keys.
type Timeframe string

const (
	TimeframeM5  Timeframe = "m5" // shortest scan interval, scalp horizon
	TimeframeH1  Timeframe = "h1"
	TimeframeH4  Timeframe = "h4"
	TimeframeD1  Timeframe = "d1"
)

// TradeSignal is a scored trade idea produced by an upstream scoring engine.
// Constructed fresh every scan cycle, never persisted.
type TradeSignal struct {
	Instrument     string
	Direction      Direction
	Conviction     Conviction
	SignalType     SignalType
	ReferencePrice float64
	Timeframe      Timeframe
	Strategy       string
}

// Levels holds the support/resistance ladder for one instrument, sorted
// nearest-first relative to the reference price on each side.
type Levels struct {
	Support    []float64
	Resistance []float64
}

// Technicals is the normalized view of one technicals response.
type Technicals struct {
	Instrument string
	Price      float64
	ATR        map[Timeframe]float64 // per-timeframe average true range
	Levels     Levels
	Signal     *TradeSignal // nil when scoring produced no actionable idea
}

// ATRFor returns the volatility measure for the timeframe, 0 if unknown.
func (t *Technicals) ATRFor(tf Timeframe) float64 {
	if t.ATR == nil {
		return 0
	}
	return t.ATR[tf]
}
