// Package routing classifies coordinator requests into downstream call routes.
package routing

import "strings"

// Route selects which downstream agents the coordinator calls, and in what
// order.
type Route string

const (
	// RouteInsurance sends the request to the insurance agent alone.
	RouteInsurance Route = "insurance"
	// RouteRecordsThenTriage chains a records lookup into a triage call.
	RouteRecordsThenTriage Route = "records_then_triage"
	// RouteTriage is the default single-call route.
	RouteTriage Route = "triage"
)

var (
	insuranceKeywords = []string{"insurance", "coverage", "billing", "copay"}
	recordKeywords    = []string{"history", "chart", "record"}
)

// Classify maps a request text to exactly one route. Matching is
// case-insensitive substring containment, checked in fixed priority order:
// insurance keywords win over record keywords, and anything else falls
// through to triage. Every input maps to a route; there is no error case.
func Classify(text string) Route {
	query := strings.ToLower(text)
	if containsAny(query, insuranceKeywords) {
		return RouteInsurance
	}
	if containsAny(query, recordKeywords) {
		return RouteRecordsThenTriage
	}
	return RouteTriage
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
