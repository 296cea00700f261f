package crawler

import (
	"math/rand"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/grounding"
)

// recoveryStrategy is one rung of the stuck-recovery ladder: a named
// command builder tried in strict priority order. A builder may report
// that it is not applicable on the current screen.
type recoveryStrategy struct {
	name  string
	build func(rc recoveryContext) (schemas.DeviceCommand, bool)
}

// recoveryContext carries what the strategies may inspect: the labels of
// the current screen and a seeded source of randomness.
type recoveryContext struct {
	labels *grounding.LabelMap
	rng    *rand.Rand
}

// recoveryLadder is the fixed policy: scroll, then back-navigation, then a
// randomized alternate tap among currently visible clickable regions.
var recoveryLadder = []recoveryStrategy{
	{
		name: "scroll",
		build: func(recoveryContext) (schemas.DeviceCommand, bool) {
			return schemas.DeviceCommand{Kind: schemas.CommandSwipe, Direction: schemas.SwipeUp}, true
		},
	},
	{
		name: "back",
		build: func(recoveryContext) (schemas.DeviceCommand, bool) {
			return schemas.DeviceCommand{Kind: schemas.CommandBack}, true
		},
	},
	{
		name: "random_tap",
		build: func(rc recoveryContext) (schemas.DeviceCommand, bool) {
			ids := rc.labels.Labels()
			if len(ids) == 0 {
				return schemas.DeviceCommand{}, false
			}
			p, _ := rc.labels.Lookup(ids[rc.rng.Intn(len(ids))])
			return schemas.DeviceCommand{Kind: schemas.CommandTap, X: p.X, Y: p.Y}, true
		},
	},
}

// runLadder folds over the ladder: each applicable strategy is executed
// once through exec, which reports whether navigation was restored. It
// returns the name of the winning strategy, or false when the ladder is
// exhausted.
func runLadder(ladder []recoveryStrategy, rc recoveryContext, exec func(name string, cmd schemas.DeviceCommand) bool) (string, bool) {
	for _, strategy := range ladder {
		cmd, ok := strategy.build(rc)
		if !ok {
			continue
		}
		if exec(strategy.name, cmd) {
			return strategy.name, true
		}
	}
	return "", false
}
