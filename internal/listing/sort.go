package listing

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dtroode/useradmin-console/internal/activity"
	"github.com/dtroode/useradmin-console/internal/model"
)

// MissingPolicy decides where users without a timestamp land in a time sort.
type MissingPolicy string

const (
	// MissingEarliest compares a missing timestamp as the oldest instant.
	MissingEarliest MissingPolicy = "earliest"
	// MissingFirst puts missing timestamps on top in either direction.
	MissingFirst MissingPolicy = "first"
	// MissingLast puts missing timestamps at the bottom in either direction.
	MissingLast MissingPolicy = "last"
)

// ParseMissingPolicy converts a config value.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(s); p {
	case MissingEarliest, MissingFirst, MissingLast:
		return p, nil
	case "":
		return MissingEarliest, nil
	}
	return "", fmt.Errorf("unknown missing dates policy %q", s)
}

// SortUsers returns a sorted copy of users. Text columns use a case-insensitive
// locale collation, time columns compare by instant. Ties keep their current
// relative order.
func SortUsers(users []model.User, col model.SortColumn, order model.SortOrder, missing MissingPolicy) []model.User {
	out := slices.Clone(users)
	desc := order == model.SortDesc

	if !col.IsTime() {
		// a Collator is not safe for concurrent use
		coll := collate.New(language.Und, collate.IgnoreCase)
		slices.SortStableFunc(out, func(a, b model.User) int {
			c := coll.CompareString(textValue(a, col), textValue(b, col))
			if desc {
				return -c
			}
			return c
		})
		return out
	}

	slices.SortStableFunc(out, func(a, b model.User) int {
		ta, okA := timeValue(a, col)
		tb, okB := timeValue(b, col)

		if missing != MissingEarliest && okA != okB {
			// exactly one side is missing
			if (missing == MissingFirst) == !okA {
				return -1
			}
			return 1
		}
		if !okA {
			ta = time.Unix(0, 0)
		}
		if !okB {
			tb = time.Unix(0, 0)
		}

		c := ta.Compare(tb)
		if desc {
			return -c
		}
		return c
	})
	return out
}

func textValue(u model.User, col model.SortColumn) string {
	switch col {
	case model.SortByEmail:
		return u.Email
	case model.SortByStatus:
		return string(u.Status)
	default:
		return u.Name
	}
}

func timeValue(u model.User, col model.SortColumn) (time.Time, bool) {
	switch col {
	case model.SortByCreatedAt:
		return activity.ParseTime(&u.CreatedAt)
	case model.SortByLastLoginTime:
		return activity.ParseTime(u.LastLoginTime)
	case model.SortByLastActivityTime:
		return activity.ParseTime(u.LastActivityTime)
	}
	return time.Time{}, false
}
