package domain

import (
	"fmt"
	"strings"
)

// InstrumentSpec carries per-instrument trading bounds. The table is static;
// distances are in instrument price units.
type InstrumentSpec struct {
	Key             string
	DisplayName     string
	MinSize         float64
	MaxSize         float64
	DefaultStop     float64
	DefaultTarget   float64
	MinStopDistance float64
	MaxStopDistance float64
	SizeUnit        string
}

var Instruments = map[string]InstrumentSpec{
	"XAUUSD": {
		Key: "XAUUSD", DisplayName: "Gold (XAUUSD)",
		MinSize: 1, MaxSize: 10,
		DefaultStop: 50.0, DefaultTarget: 100.0,
		MinStopDistance: 5.0, MaxStopDistance: 300.0,
		SizeUnit: "oz",
	},
	"MES": {
		Key: "MES", DisplayName: "Micro E-mini S&P 500",
		MinSize: 1, MaxSize: 20,
		DefaultStop: 20.0, DefaultTarget: 40.0,
		MinStopDistance: 2.0, MaxStopDistance: 100.0,
		SizeUnit: "contracts",
	},
	"IBUS500": {
		Key: "IBUS500", DisplayName: "S&P 500 CFD",
		MinSize: 1, MaxSize: 50,
		DefaultStop: 20.0, DefaultTarget: 40.0,
		MinStopDistance: 2.0, MaxStopDistance: 100.0,
		SizeUnit: "units",
	},
	"EURUSD": {
		Key: "EURUSD", DisplayName: "EUR/USD",
		MinSize: 20000, MaxSize: 500000,
		DefaultStop: 0.0050, DefaultTarget: 0.0100,
		MinStopDistance: 0.0005, MaxStopDistance: 0.0500,
		SizeUnit: "units",
	},
	"EURJPY": {
		Key: "EURJPY", DisplayName: "EUR/JPY",
		MinSize: 20000, MaxSize: 500000,
		DefaultStop: 0.50, DefaultTarget: 1.00,
		MinStopDistance: 0.05, MaxStopDistance: 5.00,
		SizeUnit: "units",
	},
	"CADJPY": {
		Key: "CADJPY", DisplayName: "CAD/JPY",
		MinSize: 20000, MaxSize: 500000,
		DefaultStop: 0.50, DefaultTarget: 1.00,
		MinStopDistance: 0.05, MaxStopDistance: 5.00,
		SizeUnit: "units",
	},
	"USDJPY": {
		Key: "USDJPY", DisplayName: "USD/JPY",
		MinSize: 20000, MaxSize: 500000,
		DefaultStop: 0.50, DefaultTarget: 1.00,
		MinStopDistance: 0.05, MaxStopDistance: 5.00,
		SizeUnit: "units",
	},
	"BTC": {
		Key: "BTC", DisplayName: "Micro Bitcoin (MBT)",
		MinSize: 1, MaxSize: 50,
		DefaultStop: 2000.0, DefaultTarget: 4000.0,
		MinStopDistance: 200.0, MaxStopDistance: 15000.0,
		SizeUnit: "contracts",
	},
}

// GetInstrument looks up an instrument spec by key.
func GetInstrument(key string) (InstrumentSpec, error) {
	spec, ok := Instruments[strings.ToUpper(strings.TrimSpace(key))]
	if !ok {
		return InstrumentSpec{}, fmt.Errorf("unknown instrument: %q", key)
	}
	return spec, nil
}
