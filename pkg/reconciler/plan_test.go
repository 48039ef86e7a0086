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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

func makeDiff(kind, namespace, name string, action DiffAction) *DiffResult {
	return &DiffResult{
		ID:     objectutil.ResourceID{Version: "v1", Kind: kind, Namespace: namespace, Name: name},
		Action: action,
	}
}

func TestMakePlan(t *testing.T) {
	order := objectutil.DefaultKindOrder()

	t.Run("cluster definitions form the first tier", func(t *testing.T) {
		diffs := []*DiffResult{
			makeDiff("Deployment", "app", "web", DiffCreate),
			makeDiff("Namespace", "", "app", DiffCreate),
			makeDiff("ConfigMap", "app", "web-config", DiffCreate),
		}

		plan, err := MakePlan(diffs, order)
		if err != nil {
			t.Fatal(err)
		}
		if len(plan.Tiers) != 2 {
			t.Fatalf("expected two tiers, got %v", len(plan.Tiers))
		}
		if diff := cmp.Diff("Namespace", plan.Tiers[0][0].ID.Kind); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}

		var kinds []string
		for _, d := range plan.Tiers[1] {
			kinds = append(kinds, d.ID.Kind)
		}
		if diff := cmp.Diff([]string{"ConfigMap", "Deployment"}, kinds); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("deletions form the last tier in reverse order", func(t *testing.T) {
		diffs := []*DiffResult{
			makeDiff("Namespace", "", "app", DiffDelete),
			makeDiff("ConfigMap", "app", "web-config", DiffDelete),
			makeDiff("Deployment", "app", "web", DiffDelete),
		}

		plan, err := MakePlan(diffs, order)
		if err != nil {
			t.Fatal(err)
		}
		if len(plan.Tiers) != 1 {
			t.Fatalf("expected one tier, got %v", len(plan.Tiers))
		}

		var kinds []string
		for _, d := range plan.Tiers[0] {
			kinds = append(kinds, d.ID.Kind)
		}
		if diff := cmp.Diff([]string{"Deployment", "ConfigMap", "Namespace"}, kinds); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("input order breaks rank ties", func(t *testing.T) {
		diffs := []*DiffResult{
			makeDiff("ConfigMap", "app", "first", DiffCreate),
			makeDiff("ConfigMap", "app", "second", DiffCreate),
			makeDiff("ConfigMap", "app", "third", DiffCreate),
		}

		plan, err := MakePlan(diffs, order)
		if err != nil {
			t.Fatal(err)
		}

		var names []string
		for _, d := range plan.Entries() {
			names = append(names, d.ID.Name)
		}
		if diff := cmp.Diff([]string{"first", "second", "third"}, names); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("rejects contradictory kind order", func(t *testing.T) {
		bad := objectutil.KindOrder{First: []string{"ConfigMap"}, Last: []string{"ConfigMap"}}
		_, err := MakePlan(nil, bad)
		if !errors.Is(err, objectutil.ErrUnresolvableOrdering) {
			t.Fatalf("expected ErrUnresolvableOrdering, got %v", err)
		}
	})

	t.Run("exposes unresolved conflicts", func(t *testing.T) {
		diffs := []*DiffResult{
			makeDiff("ConfigMap", "app", "clean", DiffPatch),
			makeDiff("ConfigMap", "app", "conflicted", DiffConflict),
		}

		plan, err := MakePlan(diffs, order)
		if err != nil {
			t.Fatal(err)
		}
		conflicts := plan.Conflicts()
		if len(conflicts) != 1 || conflicts[0].ID.Name != "conflicted" {
			t.Errorf("expected the conflicted entry, got %v", conflicts)
		}
	})
}
