package search

import (
	"sort"
	"strings"

	"flight-aggregator/internal/models"
)

// Merge deduplicates itineraries across supplier batches. Two itineraries are
// the same when their group hash matches (split round trips) or their
// outbound hash matches (single solution id). The cheaper offer is kept and every offer is
// recorded in GroupHash, ascending by price. Inputs are not modified.
func Merge(batches ...[]models.Route) []models.Route {
	var out []models.Route
	index := make(map[string]int)
	outboundOwner := make(map[string]string)

	for _, batch := range batches {
		for i := range batch {
			r := cloneRoute(&batch[i])
			key := dedupKey(&r)

			if idx, ok := index[key]; ok {
				out[idx] = mergeDuplicate(out[idx], r)
				continue
			}

			if ob := outboundHash(&r); ob != "" {
				if owner, seen := outboundOwner[ob]; !seen {
					outboundOwner[ob] = key
				} else if owner != key {
					r.IsDuplicateOutbound = true
				}
			}
			if len(r.GroupHash) == 0 {
				r.GroupHash = []models.GroupHash{r.Alternative()}
			}
			sortGroupHash(r.GroupHash)

			index[key] = len(out)
			out = append(out, r)
		}
	}
	return out
}

// SortByFare orders routes ascending by total fare, keeping merge order on ties
func SortByFare(routes []models.Route) []models.Route {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Fare.TotalFare < routes[j].Fare.TotalFare
	})
	return routes
}

// dedupKey groups split round trips by group hash and everything sold under
// a single solution id by its first-direction hash
func dedupKey(r *models.Route) string {
	if len(r.SolutionID) > 1 || len(r.HashCode) == 0 {
		return "g:" + r.GroupHashCode
	}
	return "h:" + r.HashCode[0]
}

func outboundHash(r *models.Route) string {
	if len(r.HashCode) == 0 {
		return ""
	}
	return r.HashCode[0]
}

func mergeDuplicate(existing, incoming models.Route) models.Route {
	alts := existing.GroupHash
	for _, alt := range alternativesOf(&incoming) {
		if !containsAlternative(alts, alt) {
			alts = append(alts, alt)
		}
	}

	kept, other := existing, incoming
	if incoming.Fare.TotalFare < existing.Fare.TotalFare {
		kept, other = incoming, existing
		kept.IsDuplicateOutbound = existing.IsDuplicateOutbound
	}
	backfillBookingCodes(&kept, &other)

	kept.GroupHash = alts
	sortGroupHash(kept.GroupHash)
	return kept
}

func alternativesOf(r *models.Route) []models.GroupHash {
	if len(r.GroupHash) > 0 {
		return r.GroupHash
	}
	return []models.GroupHash{r.Alternative()}
}

func alternativeKey(g *models.GroupHash) string {
	return g.Provider + "\x00" + strings.Join(g.SolutionID, models.SolutionSeparator)
}

func containsAlternative(alts []models.GroupHash, alt models.GroupHash) bool {
	k := alternativeKey(&alt)
	for i := range alts {
		if alternativeKey(&alts[i]) == k {
			return true
		}
	}
	return false
}

// backfillBookingCodes copies booking class codes the kept offer lacks
func backfillBookingCodes(dst, src *models.Route) {
	for d := 0; d < len(dst.FlightSegments) && d < len(src.FlightSegments); d++ {
		for s := 0; s < len(dst.FlightSegments[d]) && s < len(src.FlightSegments[d]); s++ {
			if dst.FlightSegments[d][s].BookingCode == "" && src.FlightSegments[d][s].BookingCode != "" {
				dst.FlightSegments[d][s].BookingCode = src.FlightSegments[d][s].BookingCode
			}
		}
	}
}

func sortGroupHash(g []models.GroupHash) {
	sort.SliceStable(g, func(i, j int) bool {
		if g[i].TotalAmount != g[j].TotalAmount {
			return g[i].TotalAmount < g[j].TotalAmount
		}
		return g[i].Provider < g[j].Provider
	})
}

func cloneRoute(r *models.Route) models.Route {
	c := *r
	c.SolutionID = append([]string(nil), r.SolutionID...)
	c.HashCode = append([]string(nil), r.HashCode...)
	c.GroupHash = append([]models.GroupHash(nil), r.GroupHash...)
	c.FlightSegments = make([][]models.Segment, len(r.FlightSegments))
	for i, dir := range r.FlightSegments {
		c.FlightSegments[i] = append([]models.Segment(nil), dir...)
	}
	c.Fare.PaxFares = append([]models.PaxFare(nil), r.Fare.PaxFares...)
	return c
}
