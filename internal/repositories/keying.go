package repositories

import "strings"

// conversationIDSeparator never appears inside a user identifier, so the
// derived id is unambiguous.
const conversationIDSeparator = "_"

// DeriveConversationID returns the stable conversation id for an unordered
// pair of user ids: the two ids sorted lexicographically and joined with a
// fixed separator. Symmetric in its arguments and collision-free as long as
// user ids themselves are unique.
func DeriveConversationID(userA, userB string) string {
	low, high := orderPair(userA, userB)
	return low + conversationIDSeparator + high
}

// SplitConversationID recovers the two participant ids from a derived
// conversation id. Reports false when the id is not in derived form.
func SplitConversationID(conversationID string) (low, high string, ok bool) {
	parts := strings.SplitN(conversationID, conversationIDSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
