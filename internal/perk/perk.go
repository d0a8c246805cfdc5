// Package perk implements the two-phase move extension pipeline. Each
// registered perk sees every move twice: once before it is applied to the
// board and once after, with the resulting position threaded from one
// perk to the next in registration order. Either phase can veto the move.
package perk

// BeforeData collects the data each perk's before-hook returned, keyed by
// perk type. It is handed back to the after-hooks unchanged.
type BeforeData map[string]map[string]string

// Perk is one registered extension.
//
// ApplyEffect runs once when the perk is invoked for a game; it may
// mutate data before the application record is stored, so that observers
// and later move hooks see consistent parameters.
//
// HandleMoveBefore runs against the pre-move position. Returning ok=false
// cancels the move outright; no after-hooks run.
//
// HandleMoveAfter runs against the candidate resulting position (already
// rewritten by earlier perks in the chain). It returns the position to
// hand to the next perk, or ok=false to veto the already-applied move.
type Perk interface {
	Type() string
	ApplyEffect(gameID, originID string, data map[string]string, p *Pipeline) error
	HandleMoveBefore(gameID, originID, move, position string, p *Pipeline) (map[string]string, bool)
	HandleMoveAfter(gameID, originID, move, result string, before BeforeData, p *Pipeline) (string, bool)
}

// Pipeline is an ordered registry of perks. The coordinator owns one;
// each client session owns its own mirror, so authoritative and cosmetic
// effects can diverge.
type Pipeline struct {
	order  []Perk
	byType map[string]Perk
}

func NewPipeline() *Pipeline {
	return &Pipeline{byType: map[string]Perk{}}
}

// Register adds a perk; a second registration under the same type
// replaces the first but keeps its position in the order.
func (p *Pipeline) Register(pk Perk) {
	if _, ok := p.byType[pk.Type()]; !ok {
		p.order = append(p.order, pk)
	} else {
		for i, existing := range p.order {
			if existing.Type() == pk.Type() {
				p.order[i] = pk
				break
			}
		}
	}
	p.byType[pk.Type()] = pk
}

func (p *Pipeline) Has(typ string) bool {
	_, ok := p.byType[typ]
	return ok
}

// Apply invokes the named perk's apply hook. The caller must have checked
// registration; applying an unknown type is a no-op returning nil data.
func (p *Pipeline) Apply(typ, gameID, originID string, data map[string]string) error {
	pk, ok := p.byType[typ]
	if !ok {
		return nil
	}
	return pk.ApplyEffect(gameID, originID, data, p)
}

// RunBefore runs every before-hook in registration order and collects
// their returned data. ok=false means some perk cancelled the move.
func (p *Pipeline) RunBefore(gameID, originID, move, position string) (BeforeData, bool) {
	collected := BeforeData{}
	for _, pk := range p.order {
		data, ok := pk.HandleMoveBefore(gameID, originID, move, position, p)
		if !ok {
			return nil, false
		}
		collected[pk.Type()] = data
	}
	return collected, true
}

// RunAfter threads the candidate resulting position through every
// after-hook in registration order. ok=false vetoes the move.
func (p *Pipeline) RunAfter(gameID, originID, move, result string, before BeforeData) (string, bool) {
	position := result
	for _, pk := range p.order {
		next, ok := pk.HandleMoveAfter(gameID, originID, move, position, before, p)
		if !ok {
			return "", false
		}
		position = next
	}
	return position, true
}
