package generator

import (
	"context"
	"math/rand"
	"time"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

const (
	taxiReach = 4
	busMinGap = 3
	busMaxGap = 8
)

// Generator produces synthetic transport boards. The same seed yields the same board.
type Generator struct {
	cfg  Config
	rand *rand.Rand
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.NumNodes <= 1 {
		cfg.NumNodes = def.NumNodes
	}
	if cfg.ExtraTaxiChance < 0 {
		cfg.ExtraTaxiChance = 0
	}
	if cfg.BusChance < 0 {
		cfg.BusChance = 0
	}
	if cfg.UndergroundEvery < 0 {
		cfg.UndergroundEvery = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate builds the board: a taxi chain through every node so the board is connected,
// short extra taxi links, longer bus links and an underground line joining evenly spaced
// stations. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (board.Spec, error) {
	n := g.cfg.NumNodes
	graph := board.New()
	for id := 1; id <= n; id++ {
		graph.AddNode(id)
	}

	for id := 1; id <= n; id++ {
		if err := ctx.Err(); err != nil {
			return board.Spec{}, err
		}
		if id < n {
			graph.Connect(id, id+1, domain.TierTaxi)
		}
		if g.rand.Float64() < g.cfg.ExtraTaxiChance {
			if other, ok := g.pick(id, 2, taxiReach); ok {
				graph.Connect(id, other, domain.TierTaxi)
			}
		}
		if g.rand.Float64() < g.cfg.BusChance {
			if other, ok := g.pick(id, busMinGap, busMaxGap); ok {
				graph.Connect(id, other, domain.TierBus)
			}
		}
	}

	if every := g.cfg.UndergroundEvery; every > 0 {
		var stations []int
		for id := 1 + g.rand.Intn(every); id <= n; id += every {
			stations = append(stations, id)
		}
		for i := 1; i < len(stations); i++ {
			graph.Connect(stations[i-1], stations[i], domain.TierUnderground)
		}
	}

	return board.SpecFromGraph(g.cfg.Name, graph), nil
}

// pick returns a node between minGap and maxGap ahead of id, if the board is long enough.
func (g *Generator) pick(id, minGap, maxGap int) (int, bool) {
	gap := minGap + g.rand.Intn(maxGap-minGap+1)
	other := id + gap
	if other > g.cfg.NumNodes {
		return 0, false
	}
	return other, true
}
