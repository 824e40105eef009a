package quarry

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// planCache memoizes which archetypes satisfy a query node. Plans are keyed
// by node identity and stamped with the archetype version at build time, so
// a hit after new archetypes appeared recomputes instead of serving stale
// matches. Bounded: cold query nodes age out instead of pinning memory.
type planCache struct {
	plans *lru.Cache[QueryNode, queryPlan]
}

type queryPlan struct {
	version  uint64
	archeIDs []archetypeID
}

// newPlanCache requires size >= 1; config normalization guarantees it.
func newPlanCache(size int) *planCache {
	plans, err := lru.New[QueryNode, queryPlan](size)
	if err != nil {
		panic(err)
	}
	return &planCache{plans: plans}
}

func (pc *planCache) lookup(node QueryNode, version uint64) ([]archetypeID, bool) {
	plan, ok := pc.plans.Get(node)
	if !ok || plan.version != version {
		return nil, false
	}
	return plan.archeIDs, true
}

func (pc *planCache) store(node QueryNode, version uint64, ids []archetypeID) {
	pc.plans.Add(node, queryPlan{version: version, archeIDs: ids})
}

func (pc *planCache) purge() {
	pc.plans.Purge()
}

func (pc *planCache) len() int {
	return pc.plans.Len()
}
