package tissue

// EnergyForm is how a single neighbor's distance contributes to the energy.
type EnergyForm int

const (
	// NoInteraction contributes nothing.
	NoInteraction EnergyForm = iota
	// LinearDistance contributes dist.
	LinearDistance
	// InverseDistance contributes 1/dist.
	InverseDistance
)

// InteractionRule describes which neighbors a type reacts to and how.
type InteractionRule struct {
	Partner CellType
	Form    EnergyForm
}

// interactionRules is the per-type dispatch table. The resolver minimizes
// energy, so a linear form pulls a cell toward its partners and an
// inverse form pushes it away from them.
var interactionRules = map[CellType]InteractionRule{
	Base:  {Form: NoInteraction},
	TypeA: {Partner: TypeA, Form: LinearDistance},
	TypeB: {Partner: Organizer, Form: LinearDistance},
	TypeC: {Partner: Organizer, Form: InverseDistance},
	TypeD: {Partner: Organizer, Form: InverseDistance},
}

// RuleFor returns the interaction rule for t. Unknown types do not interact.
func RuleFor(t CellType) InteractionRule {
	rule, ok := interactionRules[t]
	if !ok {
		return InteractionRule{Form: NoInteraction}
	}
	return rule
}

// Energy is the interaction potential of a cell of type t placed at
// candidate, given its neighborhood. Neighbors coinciding with candidate
// contribute zero.
func Energy(t CellType, candidate Position, nbhd []Neighbor) float64 {
	rule := RuleFor(t)
	if rule.Form == NoInteraction {
		return 0
	}

	total := 0.0
	for _, n := range nbhd {
		if n.Type != rule.Partner {
			continue
		}
		dist := candidate.Distance(n.Position)
		if dist <= 0 {
			continue
		}
		switch rule.Form {
		case LinearDistance:
			total += dist
		case InverseDistance:
			total += 1 / dist
		}
	}
	return total
}
