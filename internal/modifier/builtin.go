package modifier

// Well-known pipeline keys. Categories follow the command/turn types they
// adjust; subcategories name the numeric outcome.
var (
	KeyTrainingCost    = Key{"training", "cost"}
	KeyTrainingGain    = Key{"training", "gain"}
	KeyRecruitCost     = Key{"recruit", "cost"}
	KeyDevelopCost     = Key{"develop", "cost"}
	KeyDevelopGain     = Key{"develop", "gain"}
	KeyMoveDuration    = Key{"move", "duration"}
	KeyBattleAttack    = Key{"battle", "attack"}
	KeyBattleDefense   = Key{"battle", "defense"}
	KeyGoldYield       = Key{"internal", "goldYield"}
	KeyRiceYield       = Key{"internal", "riceYield"}
)

// Builtin registers the stock doctrine, trait and item catalog.
func Builtin() *Registry {
	r := NewRegistry()

	// Faction doctrines.
	r.Register(Multiplier("doctrine_drillmaster", SourceDoctrine, KeyTrainingCost, 0.8))
	r.Register(Multiplier("doctrine_conscription", SourceDoctrine, KeyRecruitCost, 0.85))
	r.Register(Multiplier("doctrine_warlord", SourceDoctrine, KeyBattleAttack, 1.1))
	r.Register(Multiplier("doctrine_bulwark", SourceDoctrine, KeyBattleDefense, 1.15))
	r.Register(Multiplier("doctrine_granary", SourceDoctrine, KeyRiceYield, 1.1))
	r.Register(Multiplier("doctrine_mercantile", SourceDoctrine, KeyGoldYield, 1.1))

	// Personality traits.
	r.Register(Multiplier("trait_frugal", SourcePersonality, KeyDevelopCost, 0.9))
	r.Register(Multiplier("trait_stern", SourcePersonality, KeyTrainingGain, 1.1))
	r.Register(Flat("trait_brave", SourcePersonality, KeyBattleAttack, 5))
	r.Register(Flat("trait_cautious", SourcePersonality, KeyBattleDefense, 5))
	r.Register(Func("trait_scholar", SourcePersonality, KeyDevelopGain, func(v float64, ctx Context) float64 {
		// Scales with intellect: +1% per 10 points over 50.
		over := float64(ctx.Intellect-50) / 10
		if over < 0 {
			over = 0
		}
		return v * (1 + over/100)
	}))

	// Equipped items.
	r.Register(Flat("item_art_of_war", SourceItem, KeyTrainingCost, -10))
	r.Register(Flat("item_sky_piercer", SourceItem, KeyBattleAttack, 10))
	r.Register(Flat("item_tortoise_shield", SourceItem, KeyBattleDefense, 10))
	r.Register(Multiplier("item_red_hare", SourceItem, KeyMoveDuration, 0.5))

	// Consumables.
	r.Register(Multiplier("tonic_vigor", SourceConsumable, KeyTrainingGain, 1.05))

	return r
}
