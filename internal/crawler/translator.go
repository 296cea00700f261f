package crawler

import (
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/grounding"
)

// Translator converts an AI-issued action into a concrete device command
// with absolute coordinates. It has no side effects; execution against the
// device is delegated to the automation driver.
type Translator struct{}

// NewTranslator returns a ready translator.
func NewTranslator() *Translator {
	return &Translator{}
}

// Translate resolves the action's target and produces a device command.
// Resolution order: a bounding box wins over a label id; a label id absent
// from the map is an UnresolvedLabelError and the action is skipped by the
// caller, not fatal to the cycle.
func (t *Translator) Translate(action schemas.AIAction, labels *grounding.LabelMap) (schemas.DeviceCommand, error) {
	switch action.Kind {
	case schemas.ActionBack:
		return schemas.DeviceCommand{Kind: schemas.CommandBack}, nil

	case schemas.ActionSwipe:
		dir := action.Direction
		if dir == "" {
			return schemas.DeviceCommand{}, &schemas.TranslationError{Reason: "swipe action without a direction"}
		}
		switch dir {
		case schemas.SwipeUp, schemas.SwipeDown, schemas.SwipeLeft, schemas.SwipeRight:
		default:
			return schemas.DeviceCommand{}, &schemas.TranslationError{Reason: "unknown swipe direction '" + string(dir) + "'"}
		}
		return schemas.DeviceCommand{Kind: schemas.CommandSwipe, Direction: dir}, nil

	case schemas.ActionTap, schemas.ActionLongPress, schemas.ActionInput:
		target, err := resolveTarget(action, labels)
		if err != nil {
			return schemas.DeviceCommand{}, err
		}

		cmd := schemas.DeviceCommand{X: target.X, Y: target.Y}
		switch action.Kind {
		case schemas.ActionTap:
			cmd.Kind = schemas.CommandTap
		case schemas.ActionLongPress:
			cmd.Kind = schemas.CommandLongPress
		case schemas.ActionInput:
			if action.Text == "" {
				return schemas.DeviceCommand{}, &schemas.TranslationError{Reason: "input action without text"}
			}
			cmd.Kind = schemas.CommandInput
			cmd.Text = action.Text
		}
		return cmd, nil

	default:
		return schemas.DeviceCommand{}, &schemas.TranslationError{Reason: "unknown action kind '" + string(action.Kind) + "'"}
	}
}

// resolveTarget picks the absolute coordinate out of the action's box or
// label reference.
func resolveTarget(action schemas.AIAction, labels *grounding.LabelMap) (schemas.Point, error) {
	if action.Box != nil {
		if err := action.Box.Validate(); err != nil {
			return schemas.Point{}, &schemas.TranslationError{Reason: err.Error()}
		}
		return action.Box.Center(), nil
	}

	if action.Label > 0 {
		p, ok := labels.Lookup(action.Label)
		if !ok {
			return schemas.Point{}, &schemas.UnresolvedLabelError{Label: action.Label}
		}
		return p, nil
	}

	return schemas.Point{}, &schemas.TranslationError{Reason: "action carries neither a bounding box nor a label id"}
}
