package validation

import "regexp"

// Action name rules (custom actions such as "publish"):
// - Lowercase only.
// - Start with [a-z], end with [a-z0-9].
// - Middle chars may include [a-z0-9_-].
// - Length 1..64.
//
// Examples valid: publish, mark_paid, re-send, a
// Examples invalid: Publish, _hidden, trail-, bad space, "", 65+ chars.
var actionNameRe = regexp.MustCompile(`^[a-z](?:[a-z0-9_-]{0,62}[a-z0-9])?$`)

// ValidActionName returns true if the provided action name matches the allowed pattern.
func ValidActionName(name string) bool {
	return actionNameRe.MatchString(name)
}
