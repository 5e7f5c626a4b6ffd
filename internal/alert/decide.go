// Package alert decides which nearby earthquakes warrant a user alert and
// drives the client poll loop that feeds those decisions to notifiers.
package alert

import (
	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// MinAlertMagnitude is the smallest magnitude that can raise an alert.
const MinAlertMagnitude = 4.0

// UrgentMagnitude marks alerts that should demand the user's attention.
const UrgentMagnitude = 6.0

// Decide returns the records in newRecords that warrant an alert, in input
// order, and appends their ids to ledger. A record qualifies when all hold:
//
//   - its id is not in previouslySeen (nil means nothing was seen before)
//   - its magnitude is at least MinAlertMagnitude
//   - its distance from user, rounded to 0.1 km, is within user.RadiusKm
//   - its id is not already in ledger
//
// With no user location nothing qualifies. A nil ledger is treated as empty
// and discarded afterwards, so ids still are not repeated within one call.
// Decide has no other side effects.
func Decide(newRecords []domain.Earthquake, previouslySeen map[string]struct{}, user *domain.UserLocation, ledger *Ledger) []domain.NearbyEarthquake {
	if user == nil {
		return nil
	}
	if ledger == nil {
		ledger = NewLedger(DefaultLedgerCapacity)
	}

	var out []domain.NearbyEarthquake
	for _, eq := range newRecords {
		if _, seen := previouslySeen[eq.ID]; seen {
			continue
		}
		if eq.Magnitude < MinAlertMagnitude {
			continue
		}
		d := domain.RoundKm(domain.DistanceKm(user.Latitude, user.Longitude, eq.Latitude, eq.Longitude))
		if d > user.RadiusKm {
			continue
		}
		if ledger.Contains(eq.ID) {
			continue
		}
		ledger.Append(eq.ID)
		out = append(out, domain.NearbyEarthquake{Earthquake: eq, DistanceKm: d})
	}
	return out
}
