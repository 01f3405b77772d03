package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"schedbot/internal/domain"
)

// ParseID returns the id segment of {prefix}/{kind}/{id}/...
func ParseID(topic, prefix, kind string) (string, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) < len(prefixParts)+3 {
		return "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != kind {
		return "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	id := parts[len(prefixParts)+1]
	if id == "" || id == "+" || id == "#" {
		return "", fmt.Errorf("invalid topic id: %s", topic)
	}
	return id, nil
}

// ParsePollResult accepts {"passed":bool} or a bare true/false/pass/fail.
func ParsePollResult(payload []byte) (bool, error) {
	var body struct {
		Passed *bool `json:"passed"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Passed != nil {
		return *body.Passed, nil
	}
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "true", "1", "pass", "passed", "passes":
		return true, nil
	case "false", "0", "fail", "failed", "fails":
		return false, nil
	}
	return false, fmt.Errorf("invalid poll result payload: %q", string(payload))
}

// ParseReply maps a user's confirmation reply onto a dialog input. It
// accepts {"reply":"..."} or the bare word.
func ParseReply(payload []byte) (domain.Input, error) {
	raw := string(payload)
	var body struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Reply != "" {
		raw = body.Reply
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "confirm", "confirmed", "yes", "y":
		return domain.InputConfirm, nil
	case "deny", "denied", "cancel", "no", "n":
		return domain.InputDenied, nil
	}
	return "", fmt.Errorf("invalid reply payload: %q", raw)
}
