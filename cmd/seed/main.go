// Command seed populates a fresh database with a playable three-kingdoms
// scenario so the daemon has something to simulate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/queue"
	"github.com/parkjunho/samguk/internal/store"
)

type factionSeed struct {
	name     string
	doctrine string
	gold     int64
	rice     int64
	cities   []citySeed
	generals []generalSeed
}

type citySeed struct {
	name        string
	x, y        int
	population  int
	commerce    int
	agriculture int
}

type generalSeed struct {
	name        string
	city        string
	leadership  int
	strength    int
	intellect   int
	personality string
	items       []string
	troops      int
	training    int
	gold        int64
	rice        int64
}

var scenario = []factionSeed{
	{
		name: "Wei", doctrine: "doctrine_drillmaster", gold: 5000, rice: 8000,
		cities: []citySeed{
			{name: "Luoyang", x: 5, y: 2, population: 80000, commerce: 500, agriculture: 400},
			{name: "Xuchang", x: 6, y: 3, population: 50000, commerce: 350, agriculture: 450},
		},
		generals: []generalSeed{
			{name: "Cao Cao", city: "Luoyang", leadership: 95, strength: 72, intellect: 91,
				personality: "trait_stern", items: []string{"item_art_of_war"}, troops: 8000, training: 60, gold: 1000, rice: 2000},
			{name: "Xiahou Dun", city: "Xuchang", leadership: 85, strength: 90, intellect: 60,
				personality: "trait_brave", troops: 6000, training: 55, gold: 500, rice: 1500},
		},
	},
	{
		name: "Shu", doctrine: "doctrine_granary", gold: 3000, rice: 10000,
		cities: []citySeed{
			{name: "Chengdu", x: 1, y: 6, population: 60000, commerce: 300, agriculture: 600},
		},
		generals: []generalSeed{
			{name: "Liu Bei", city: "Chengdu", leadership: 88, strength: 70, intellect: 78,
				personality: "trait_cautious", troops: 5000, training: 50, gold: 800, rice: 2500},
			{name: "Zhuge Liang", city: "Chengdu", leadership: 92, strength: 40, intellect: 100,
				personality: "trait_scholar", troops: 3000, training: 65, gold: 600, rice: 2000},
		},
	},
	{
		name: "Wu", doctrine: "doctrine_mercantile", gold: 7000, rice: 6000,
		cities: []citySeed{
			{name: "Jianye", x: 8, y: 6, population: 70000, commerce: 650, agriculture: 350},
		},
		generals: []generalSeed{
			{name: "Sun Quan", city: "Jianye", leadership: 86, strength: 68, intellect: 80,
				personality: "trait_frugal", troops: 6000, training: 58, gold: 1200, rice: 1800},
		},
	},
}

func main() {
	dbPath := flag.String("db", "samguk.db", "Path to the SQLite database")
	sessionID := flag.String("session", "default", "Session id to seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	var totalPop, totalTroops int
	generalIDs := make(map[string]int64)

	for _, fs := range scenario {
		factionID, err := st.InsertFaction(ctx, &store.Faction{
			SessionID: *sessionID,
			Name:      fs.name,
			Doctrine:  fs.doctrine,
			Gold:      fs.gold,
			Rice:      fs.rice,
		})
		if err != nil {
			fatal("insert faction", fs.name, err)
		}

		cityIDs := make(map[string]int64)
		for _, cs := range fs.cities {
			id, err := st.InsertCity(ctx, &store.City{
				SessionID:   *sessionID,
				FactionID:   factionID,
				Name:        cs.name,
				X:           cs.x,
				Y:           cs.y,
				Population:  cs.population,
				Commerce:    cs.commerce,
				Agriculture: cs.agriculture,
			})
			if err != nil {
				fatal("insert city", cs.name, err)
			}
			cityIDs[cs.name] = id
			totalPop += cs.population
		}

		for _, gs := range fs.generals {
			id, err := st.InsertGeneral(ctx, &store.General{
				SessionID:   *sessionID,
				FactionID:   factionID,
				CityID:      cityIDs[gs.city],
				Name:        gs.name,
				Leadership:  gs.leadership,
				Strength:    gs.strength,
				Intellect:   gs.intellect,
				Personality: gs.personality,
				Items:       gs.items,
				Troops:      gs.troops,
				Training:    gs.training,
				Gold:        gs.gold,
				Rice:        gs.rice,
			})
			if err != nil {
				fatal("insert general", gs.name, err)
			}
			generalIDs[gs.name] = id
			totalTroops += gs.troops
		}

		slog.Info("faction seeded", "name", fs.name,
			"cities", len(fs.cities), "generals", len(fs.generals))
	}

	// Opening orders, so the daemon has work waiting on first poll.
	starters := []struct {
		actor string
		kind  string
		args  command.Args
	}{
		{"Cao Cao", "train", nil},
		{"Liu Bei", "recruit", command.Args{"count": 500.0}},
		{"Sun Quan", "develop", command.Args{"sector": "commerce"}},
	}
	q := queue.New(st)
	for _, sc := range starters {
		cmd := command.New(*sessionID, generalIDs[sc.actor], sc.kind, sc.args)
		if err := q.Enqueue(ctx, cmd); err != nil {
			fatal("enqueue command", sc.kind, err)
		}
		slog.Info("command queued", "kind", sc.kind, "actor", sc.actor, "id", cmd.ID)
	}

	fmt.Printf("seeded session %q: %d factions, %s citizens, %s troops under arms, %d orders queued\n",
		*sessionID, len(scenario), humanize.Comma(int64(totalPop)), humanize.Comma(int64(totalTroops)), len(starters))
}

func fatal(what, name string, err error) {
	slog.Error("seed failed", "step", what, "name", name, "err", err)
	os.Exit(1)
}
