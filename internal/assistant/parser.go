package assistant

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/similarity"
)

var errEmptyReply = errors.New("empty reply from model")

// Parse interprets raw model output. Text that is not JSON becomes a
// conversational fallback; an empty reply is a malformed_response failure.
func Parse(content string, log zerolog.Logger) *Response {
	text := strings.TrimSpace(content)
	if text == "" {
		return failure(ReasonMalformed, errEmptyReply)
	}

	obj, ok := decodeObject(text)
	if !ok {
		var other interface{}
		if json.Unmarshal([]byte(cleanModelJSON(text)), &other) == nil {
			// Valid JSON but not an object: nothing we can dispatch on.
			return failure(ReasonMalformed, errors.New("reply is JSON but not an object"))
		}
		return &Response{Kind: KindConversational, Message: text, Fallback: true}
	}
	return dispatch(obj, log)
}

// decodeObject extracts a JSON object from text, tolerating code fences and
// chatter around the braces.
func decodeObject(text string) (map[string]interface{}, bool) {
	clean := cleanModelJSON(text)
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err == nil && obj != nil {
		return obj, true
	}
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(clean[start:end+1]), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// cleanModelJSON strips Markdown code fences the model may add despite
// instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = s[idx+1:]
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	return strings.TrimSpace(s)
}

func dispatch(obj map[string]interface{}, log zerolog.Logger) *Response {
	message, _ := obj["message"].(string)
	pending, _ := obj["pendingAction"].(string)

	if recs, ok := objectList(obj["sales"]); ok {
		return &Response{Kind: KindCreateMany, Message: message, Records: recs}
	}
	if raw, ok := obj["sale"]; ok && raw != nil {
		rec, _ := raw.(map[string]interface{})
		return &Response{Kind: KindCreate, Message: message, Records: []map[string]interface{}{rec}}
	}
	if recs, ok := objectList(obj["updatedSales"]); ok {
		return &Response{Kind: KindUpdate, Message: message, Records: recs}
	}
	if ids := stringList(obj["deletedIds"]); len(ids) > 0 {
		return &Response{Kind: KindDeleteMany, Message: message, IDs: ids}
	}
	if id, ok := obj["deletedId"].(string); ok && strings.TrimSpace(id) != "" {
		return &Response{Kind: KindDeleteOne, Message: message, IDs: []string{strings.TrimSpace(id)}}
	}

	missing, hasMissing := obj["missingInfo"].(map[string]interface{})
	if pending == "request_clarification" || hasMissing {
		c := &Clarification{Question: message, Category: CategoryOther}
		if hasMissing {
			if q, ok := missing["question"].(string); ok && strings.TrimSpace(q) != "" {
				c.Question = strings.TrimSpace(q)
			}
			if t, ok := missing["type"].(string); ok && validCategory(t) {
				c.Category = t
			}
		}
		if message == "" {
			message = c.Question
		}
		return &Response{Kind: KindClarification, Message: message, Clarification: c}
	}

	if pending == "confirm_entity_match" {
		if cands := parseCandidates(obj["potentialMatches"]); len(cands) > 0 {
			return &Response{Kind: KindEntityMatch, Message: message, Candidates: cands}
		}
	}
	if pending == "suggestion" {
		if s, ok := obj["suggestion"].(string); ok && strings.TrimSpace(s) != "" {
			return &Response{Kind: KindSuggestion, Message: message, Suggestion: strings.TrimSpace(s)}
		}
	}

	if success, _ := obj["success"].(bool); success && claimsRegisteredSale(message) {
		if rec, ok := recoverSale(message); ok {
			log.Warn().Str("message", message).Msg("Rebuilt sale missing from assistant reply")
			return &Response{Kind: KindCreate, Message: message, Records: []map[string]interface{}{rec}, Recovered: true}
		}
		log.Warn().
			Str("event", "inconsistent_response").
			Str("message", message).
			Msg("Assistant claimed a sale was registered but sent no sale")
	}

	if message == "" {
		if insight, ok := obj["insight"].(string); ok {
			message = insight
		}
	}
	if strings.TrimSpace(message) == "" {
		return failure(ReasonMalformed, errors.New("reply has neither payload nor message"))
	}
	return &Response{Kind: KindConversational, Message: message}
}

// objectList returns the elements of a non-empty JSON array. Elements that
// are not objects are kept as nil so validation rejects them.
func objectList(v interface{}) ([]map[string]interface{}, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, false
	}
	out := make([]map[string]interface{}, len(arr))
	for i, item := range arr {
		out[i], _ = item.(map[string]interface{})
	}
	return out, true
}

func stringList(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, formatNumber(t))
		}
	}
	return out
}

func validCategory(c string) bool {
	switch c {
	case CategoryProductDetails, CategoryQuantity, CategoryPrice, CategoryOther:
		return true
	}
	return false
}

var matchGroups = []struct {
	key   string
	field domain.Field
}{
	{"products", domain.FieldProduct},
	{"clients", domain.FieldClient},
	{"paymentMethods", domain.FieldPaymentMethod},
}

func parseCandidates(v interface{}) []EntityCandidate {
	pm, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	var out []EntityCandidate
	for _, g := range matchGroups {
		items, _ := pm[g.key].([]interface{})
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			orig, _ := m["original"].(string)
			canon, _ := m["potential"].(string)
			if orig == "" || canon == "" || orig == canon {
				continue
			}
			out = append(out, EntityCandidate{
				Field:      g.field,
				Original:   orig,
				Canonical:  canon,
				Similarity: similarity.Similarity(orig, canon),
			})
		}
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
