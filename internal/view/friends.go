package view

import domain "github.com/pocket-tcg/api/internal/domain"

// Friends returns the users offered in the friends list, preserving directory order.
//
// The signed-in user stays in the list unless excludeSelf is set.
func Friends(all []domain.UserSummary, self string, excludeSelf bool) []domain.UserSummary {
	out := make([]domain.UserSummary, 0, len(all))
	for _, u := range all {
		if excludeSelf && self != "" && u.UID == self {
			continue
		}
		out = append(out, u)
	}
	return out
}

// FindUser looks up a directory entry by uid.
func FindUser(all []domain.UserSummary, uid string) (domain.UserSummary, bool) {
	for _, u := range all {
		if u.UID == uid {
			return u, true
		}
	}
	return domain.UserSummary{}, false
}
