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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestThreeWayMerge(t *testing.T) {
	t.Run("converged state yields no operations", func(t *testing.T) {
		doc := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(2)}}
		ops, conflicts := threeWayMerge(doc, doc, doc)
		if len(ops) != 0 || len(conflicts) != 0 {
			t.Errorf("expected empty merge, got %v ops and %v conflicts", len(ops), len(conflicts))
		}
	})

	t.Run("sets new fields", func(t *testing.T) {
		base := map[string]interface{}{}
		live := map[string]interface{}{}
		desired := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(2)}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(conflicts) != 0 {
			t.Fatalf("unexpected conflicts: %v", conflicts)
		}
		if len(ops) != 1 {
			t.Fatalf("expected one op, got %v", ops)
		}
		if diff := cmp.Diff("set spec", ops[0].String()); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("updates cleanly changed fields", func(t *testing.T) {
		base := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(2)}}
		live := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(2)}}
		desired := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(3)}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(conflicts) != 0 {
			t.Fatalf("unexpected conflicts: %v", conflicts)
		}
		if len(ops) != 1 || ops[0].Value != int64(3) {
			t.Fatalf("expected replicas set to 3, got %v", ops)
		}
		if diff := cmp.Diff([]string{"spec", "replicas"}, ops[0].Path); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("reports externally modified fields as conflicts", func(t *testing.T) {
		base := map[string]interface{}{"spec": map[string]interface{}{"image": "app:v1"}}
		live := map[string]interface{}{"spec": map[string]interface{}{"image": "app:v1-hotfix"}}
		desired := map[string]interface{}{"spec": map[string]interface{}{"image": "app:v2"}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(ops) != 0 {
			t.Fatalf("unexpected ops: %v", ops)
		}
		if len(conflicts) != 1 {
			t.Fatalf("expected one conflict, got %v", conflicts)
		}
		if diff := cmp.Diff("spec.image", conflicts[0].String()); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
		if conflicts[0].Live != "app:v1-hotfix" || conflicts[0].Desired != "app:v2" {
			t.Errorf("conflict does not carry the live and desired values: %+v", conflicts[0])
		}
	})

	t.Run("removes fields dropped from the desired manifest", func(t *testing.T) {
		base := map[string]interface{}{"data": map[string]interface{}{"old": "x", "kept": "y"}}
		live := map[string]interface{}{"data": map[string]interface{}{"old": "x", "kept": "y"}}
		desired := map[string]interface{}{"data": map[string]interface{}{"kept": "y"}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(conflicts) != 0 {
			t.Fatalf("unexpected conflicts: %v", conflicts)
		}
		if len(ops) != 1 || ops[0].Kind != OpRemove {
			t.Fatalf("expected one remove op, got %v", ops)
		}
		if diff := cmp.Diff([]string{"data", "old"}, ops[0].Path); diff != "" {
			t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
		}
	})

	t.Run("dropped field changed externally is a conflict", func(t *testing.T) {
		base := map[string]interface{}{"data": map[string]interface{}{"old": "x"}}
		live := map[string]interface{}{"data": map[string]interface{}{"old": "edited"}}
		desired := map[string]interface{}{"data": map[string]interface{}{}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(ops) != 0 {
			t.Fatalf("unexpected ops: %v", ops)
		}
		if len(conflicts) != 1 || conflicts[0].String() != "data.old" {
			t.Fatalf("expected conflict on data.old, got %v", conflicts)
		}
	})

	t.Run("dropped field already gone needs no operation", func(t *testing.T) {
		base := map[string]interface{}{"data": map[string]interface{}{"old": "x"}}
		live := map[string]interface{}{"data": map[string]interface{}{}}
		desired := map[string]interface{}{"data": map[string]interface{}{}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(ops) != 0 || len(conflicts) != 0 {
			t.Errorf("expected empty merge, got %v ops and %v conflicts", ops, conflicts)
		}
	})

	t.Run("leaves live-only fields alone", func(t *testing.T) {
		base := map[string]interface{}{}
		live := map[string]interface{}{"status": map[string]interface{}{"phase": "Active"}}
		desired := map[string]interface{}{}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(ops) != 0 || len(conflicts) != 0 {
			t.Errorf("expected empty merge, got %v ops and %v conflicts", ops, conflicts)
		}
	})

	t.Run("tolerates numeric representation differences", func(t *testing.T) {
		base := map[string]interface{}{"spec": map[string]interface{}{"replicas": float64(2)}}
		live := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(2)}}
		desired := map[string]interface{}{"spec": map[string]interface{}{"replicas": int64(2)}}

		ops, conflicts := threeWayMerge(base, live, desired)
		if len(ops) != 0 || len(conflicts) != 0 {
			t.Errorf("expected empty merge, got %v ops and %v conflicts", ops, conflicts)
		}
	})
}

func TestForcedOps(t *testing.T) {
	conflicts := []Conflict{
		{Path: []string{"spec", "image"}, Base: "v1", Live: "hotfix", Desired: "v2"},
		{Path: []string{"data", "old"}, Base: "x", Live: "edited"},
	}

	ops := forcedOps(conflicts)
	if len(ops) != 2 {
		t.Fatalf("expected two ops, got %v", ops)
	}
	if ops[0].Kind != OpSet || ops[0].Value != "v2" {
		t.Errorf("expected desired value to win, got %+v", ops[0])
	}
	if ops[1].Kind != OpRemove {
		t.Errorf("expected dropped field to be removed, got %+v", ops[1])
	}
}
