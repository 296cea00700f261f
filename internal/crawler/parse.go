package crawler

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonBlockRegex strips an optional markdown fence around the JSON array.
var jsonBlockRegex = regexp.MustCompile("(?s)(?:```json\\s*|```\\s*|)(\\[.*\\]|\\{.*\\})(?:\\s*```|)")

// parseActionResponse extracts the ordered AIAction sequence out of the
// model's raw response. A single bare object is accepted and wrapped into
// a one-element sequence.
func parseActionResponse(response string) ([]schemas.AIAction, error) {
	response = strings.TrimSpace(response)

	payload := response
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		payload = matches[1]
	}

	var actions []schemas.AIAction
	if strings.HasPrefix(payload, "{") {
		var single schemas.AIAction
		if err := json.UnmarshalFromString(payload, &single); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action object: %w", err)
		}
		actions = []schemas.AIAction{single}
	} else {
		if err := json.UnmarshalFromString(payload, &actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action array: %w", err)
		}
	}

	if len(actions) == 0 {
		return nil, fmt.Errorf("model returned an empty action sequence")
	}
	for i, a := range actions {
		if a.Kind == "" {
			return nil, fmt.Errorf("action %d is missing the required 'kind' field", i+1)
		}
	}
	return actions, nil
}
