/*
Copyright 2022 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reconciler

import (
	"sort"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// Plan is an ordered sequence of diff results grouped into execution
// tiers. Tiers run strictly one after another; entries inside a tier
// are independent and may run concurrently. A plan carries no mutable
// state: it is fully re-derivable from the desired set and the live
// snapshot it was computed from.
type Plan struct {
	// Tiers holds the apply operations: cluster definitions (CRDs and
	// Namespaces) first, regular objects next, webhook configurations
	// last, each tier sorted by kind rank with the normalized input
	// order as tie-break. Deletions form the final tier in reverse
	// apply order.
	Tiers [][]*DiffResult
}

// Entries returns the plan's diff results in execution order.
func (p *Plan) Entries() []*DiffResult {
	var all []*DiffResult
	for _, tier := range p.Tiers {
		all = append(all, tier...)
	}
	return all
}

// Conflicts returns the unresolved conflicts carried by the plan. The
// caller decides whether such a plan may proceed; the executor records
// them as conflict outcomes without performing the patch.
func (p *Plan) Conflicts() []*DiffResult {
	var conflicts []*DiffResult
	for _, d := range p.Entries() {
		if d.Action == DiffConflict {
			conflicts = append(conflicts, d)
		}
	}
	return conflicts
}

// MakePlan orders the given diff results for execution. It fails only
// when the configured kind order is contradictory.
func MakePlan(diffs []*DiffResult, order objectutil.KindOrder) (*Plan, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	var definitions, objects, deletions []*DiffResult
	for _, d := range diffs {
		switch {
		case d.Action == DiffDelete:
			deletions = append(deletions, d)
		case objectutil.IsClusterDefinition(d.ID.Kind):
			definitions = append(definitions, d)
		default:
			objects = append(objects, d)
		}
	}

	sortByRank(definitions, order)
	sortByRank(objects, order)
	sort.SliceStable(deletions, func(i, j int) bool {
		return order.RankOf(deletions[i].ID.Kind) > order.RankOf(deletions[j].ID.Kind)
	})

	plan := &Plan{}
	for _, tier := range [][]*DiffResult{definitions, objects, deletions} {
		if len(tier) > 0 {
			plan.Tiers = append(plan.Tiers, tier)
		}
	}
	return plan, nil
}

func sortByRank(diffs []*DiffResult, order objectutil.KindOrder) {
	sort.SliceStable(diffs, func(i, j int) bool {
		return order.RankOf(diffs[i].ID.Kind) < order.RankOf(diffs[j].ID.Kind)
	})
}
