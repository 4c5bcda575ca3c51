package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseDraftJSON parses the JSON response from the extraction model into a
// draft record. The draft is deliberately left raw: field coercion and
// validation belong to the normalizer, not the oracle boundary.
func parseDraftJSON(text string) (*DraftReceipt, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Models sometimes wrap the JSON in prose; cut to the outermost object
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var draft DraftReceipt
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	for i := range draft.Items {
		draft.Items[i].Name = FlexString(strings.TrimSpace(draft.Items[i].Name.String()))
	}

	return &draft, nil
}
