package dedup

import (
	"testing"
	"time"

	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func lead(website string, age time.Duration) domain.Lead {
	return domain.Lead{ID: uuid.New(), Website: website, CreatedAt: time.Now().Add(-age)}
}

func TestBuildPlanKeepsMostRecentOfEquivalentWebsites(t *testing.T) {
	newest := lead("https://Foo.com/", time.Minute)
	middle := lead("foo.com", time.Hour)
	oldest := lead("WWW.FOO.COM", 24*time.Hour)
	other := lead("https://bar.es", 2*time.Hour)

	plan := BuildPlan([]domain.Lead{newest, middle, other, oldest})

	if plan.Found != 3 {
		t.Fatalf("Found = %d, want 3", plan.Found)
	}
	if len(plan.Remove) != 2 {
		t.Fatalf("Remove = %v, want 2 ids", plan.Remove)
	}
	if len(plan.Keep) != 1 || plan.Keep[0] != newest.ID {
		t.Fatalf("Keep = %v, want newest %s", plan.Keep, newest.ID)
	}
	for _, id := range plan.Remove {
		if id == newest.ID || id == other.ID {
			t.Fatalf("plan removes a survivor: %s", id)
		}
	}
	if len(plan.Groups) != 1 || plan.Groups[0].Key != "foo.com" {
		t.Fatalf("Groups = %+v", plan.Groups)
	}
}

func TestBuildPlanCollapsesMissingWebsites(t *testing.T) {
	a := lead("", time.Minute)
	b := lead("   ", time.Hour)
	c := lead("", 2*time.Hour)

	plan := BuildPlan([]domain.Lead{a, b, c})
	if plan.Found != 3 || len(plan.Remove) != 2 || plan.Keep[0] != a.ID {
		t.Fatalf("empty websites should form one group kept at the newest: %+v", plan)
	}
}

func TestBuildPlanNoDuplicates(t *testing.T) {
	plan := BuildPlan([]domain.Lead{lead("a.com", 0), lead("b.com", time.Hour)})
	if plan.Found != 0 || len(plan.Remove) != 0 || len(plan.Groups) != 0 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}
