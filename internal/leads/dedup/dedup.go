// Package dedup groups leads by normalized website and picks the survivors.
package dedup

import (
	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Group is a set of leads sharing one normalized website, most recent first.
type Group struct {
	Key     string
	LeadIDs []uuid.UUID
}

// Plan is the outcome of grouping an owner's leads.
type Plan struct {
	// Groups holds only keys with more than one lead.
	Groups []Group
	Keep   []uuid.UUID
	Remove []uuid.UUID
	// Found counts every lead in a duplicate group, survivors included.
	Found int
}

// BuildPlan groups leads, which must be ordered by created_at descending, and
// keeps the first lead of each group. Leads without a website share the "" key
// and therefore collapse into a single group.
func BuildPlan(leads []domain.Lead) Plan {
	order := make([]string, 0)
	byKey := make(map[string][]uuid.UUID)
	for _, lead := range leads {
		key := domain.NormalizeWebsite(lead.Website)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], lead.ID)
	}

	var plan Plan
	for _, key := range order {
		ids := byKey[key]
		if len(ids) < 2 {
			continue
		}
		plan.Groups = append(plan.Groups, Group{Key: key, LeadIDs: ids})
		plan.Keep = append(plan.Keep, ids[0])
		plan.Remove = append(plan.Remove, ids[1:]...)
		plan.Found += len(ids)
	}
	return plan
}
