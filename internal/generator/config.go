package generator

// Config drives the synthetic board generator.
type Config struct {
	Name string
	// NumNodes is the board size; nodes are numbered 1..NumNodes.
	NumNodes int
	// ExtraTaxiChance adds a short taxi link beside the backbone.
	ExtraTaxiChance float64
	// BusChance is the per-node probability of starting a bus link.
	BusChance float64
	// UndergroundEvery spaces the underground stations; 0 disables the line.
	UndergroundEvery int
	Seed             int64
}

// DefaultConfig returns settings close to a city-sized board.
func DefaultConfig() Config {
	return Config{
		Name:             "generated",
		NumNodes:         199,
		ExtraTaxiChance:  0.6,
		BusChance:        0.3,
		UndergroundEvery: 15,
		Seed:             42,
	}
}
