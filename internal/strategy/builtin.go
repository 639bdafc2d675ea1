package strategy

// DefaultRegistry returns a registry holding every built-in strategy.
func DefaultRegistry() (*RegistryV1, error) {
	registry := NewRegistry()

	definitions := []Definition{
		{
			Key:         "mean_reversion",
			Description: "Buys an opening gap down and holds for a fixed number of bars",
			Params:      defaultMeanReversionParams(),
			Factory:     NewMeanReversion,
		},
		{
			Key:         "roc",
			Description: "Holds while the rate of change over the look-back exceeds a threshold",
			Params:      RateOfChangeParams{Period: 130, Threshold: 0},
			Factory:     NewRateOfChange,
		},
		{
			Key:         "signal_column",
			Description: "Uses a precomputed signal column of the bars",
			Params:      SignalColumnParams{Column: "signal"},
			Factory:     NewSignalColumn,
		},
		{
			Key:         "sma_crossover",
			Description: "Holds while the fast moving average is above the slow one",
			Params:      SMACrossoverParams{Fast: 20, Slow: 50},
			Factory:     NewSMACrossover,
		},
	}

	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
