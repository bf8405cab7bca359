// Package selector resolves a user's ordered format preference against the
// set of formats a catalog actually offers.
package selector

import (
	"github.com/yavdl/yavdl/internal/types"
)

// PreferenceList is a named, ordered sequence of desired format ids.
// Immutable once loaded.
type PreferenceList struct {
	Name    string
	Entries []types.FormatID
}

// DefaultPreferenceList mirrors the historical built-in ordering.
func DefaultPreferenceList() PreferenceList {
	return PreferenceList{
		Name:    "builtin",
		Entries: []types.FormatID{22, 35, 34, 18, 5, types.FormatDefault},
	}
}

// ForcedPreferenceList wraps a single explicitly requested format id, used
// when the caller bypasses preference resolution.
func ForcedPreferenceList(id types.FormatID) PreferenceList {
	return PreferenceList{Name: "forced", Entries: []types.FormatID{id}}
}

// Select scans the preference list left to right and returns the first
// entry offered by the listing. The platform-default sentinel matches iff
// the listing declares a default, wherever the sentinel appears. Exhaustion
// returns *types.NotAvailableError; a format is never silently substituted.
//
// Selection is deterministic: only list order matters, never listing order.
func Select(list PreferenceList, listing *types.Listing) (types.FormatDescriptor, error) {
	for _, entry := range list.Entries {
		id := int(entry)
		if entry.IsDefault() {
			if !listing.HasDefault {
				continue
			}
			id = listing.DefaultFormat
		}
		if f, ok := listing.Find(id); ok {
			return f, nil
		}
	}
	return types.FormatDescriptor{}, &types.NotAvailableError{
		VideoID:  listing.VideoID,
		ListName: list.Name,
	}
}
