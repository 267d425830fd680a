package cart

import "strconv"

// BadgeCeiling is the largest count rendered verbatim on the cart badge.
const BadgeCeiling = 99

// BadgeText returns the badge label for count. ok is false when the badge
// should be removed.
func BadgeText(count int) (text string, ok bool) {
	if count <= 0 {
		return "", false
	}
	if count > BadgeCeiling {
		return strconv.Itoa(BadgeCeiling) + "+", true
	}
	return strconv.Itoa(count), true
}
