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
	"reflect"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// OpKind is the type of a field-level change.
type OpKind string

const (
	// OpSet writes the desired value at the path.
	OpSet OpKind = "set"
	// OpRemove deletes the field at the path.
	OpRemove OpKind = "remove"
)

// FieldOp is one field-level change needed to move the live object
// toward the desired manifest.
type FieldOp struct {
	Path  []string
	Kind  OpKind
	Value interface{}
}

func (op FieldOp) String() string {
	return string(op.Kind) + " " + strings.Join(op.Path, ".")
}

// Conflict records a field that was modified by an external actor
// since the last apply: the live value differs from both the baseline
// and the desired manifest.
type Conflict struct {
	Path    []string
	Base    interface{}
	Live    interface{}
	Desired interface{}
}

func (c Conflict) String() string {
	return strings.Join(c.Path, ".")
}

// threeWayMerge computes the field operations that converge live
// toward desired, using base as the record of what the previous apply
// set. Fields present on the live object that neither desired nor base
// mention are left alone. A field whose live value differs from both
// base and desired is reported as a conflict instead of an operation.
func threeWayMerge(base, live, desired map[string]interface{}) (ops []FieldOp, conflicts []Conflict) {
	var walk func(path []string, base, live, desired map[string]interface{})
	walk = func(path []string, base, live, desired map[string]interface{}) {
		for key, desiredVal := range desired {
			fieldPath := append(append([]string{}, path...), key)
			baseVal, inBase := base[key]
			liveVal, inLive := live[key]

			desiredMap, desiredIsMap := desiredVal.(map[string]interface{})
			liveMap, liveIsMap := liveVal.(map[string]interface{})
			if desiredIsMap && inLive && liveIsMap {
				baseMap, _ := baseVal.(map[string]interface{})
				if baseMap == nil {
					baseMap = map[string]interface{}{}
				}
				walk(fieldPath, baseMap, liveMap, desiredMap)
				continue
			}

			switch {
			case inLive && equalValue(liveVal, desiredVal):
				// already converged
			case !inLive && !inBase:
				// new field, nothing on the server to collide with
				ops = append(ops, FieldOp{Path: fieldPath, Kind: OpSet, Value: desiredVal})
			case inLive && inBase && equalValue(liveVal, baseVal):
				// clean change: the server still holds what we last applied
				ops = append(ops, FieldOp{Path: fieldPath, Kind: OpSet, Value: desiredVal})
			default:
				// the live value differs from both the baseline and the
				// desired manifest: externally mutated since the last apply
				conflicts = append(conflicts, Conflict{
					Path: fieldPath, Base: baseVal, Live: liveVal, Desired: desiredVal,
				})
			}
		}

		// fields removed from the desired manifest since the last apply
		for key, baseVal := range base {
			if _, inDesired := desired[key]; inDesired {
				continue
			}
			liveVal, inLive := live[key]
			if !inLive {
				continue
			}
			fieldPath := append(append([]string{}, path...), key)
			if equalValue(liveVal, baseVal) {
				ops = append(ops, FieldOp{Path: fieldPath, Kind: OpRemove})
			} else {
				conflicts = append(conflicts, Conflict{
					Path: fieldPath, Base: baseVal, Live: liveVal,
				})
			}
		}
	}

	walk(nil, base, live, desired)
	return ops, conflicts
}

// forcedOps turns the given conflicts into operations that make the
// desired value win, used when the caller requested force-overwrite.
func forcedOps(conflicts []Conflict) []FieldOp {
	ops := make([]FieldOp, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Desired == nil && c.Base != nil {
			ops = append(ops, FieldOp{Path: c.Path, Kind: OpRemove})
			continue
		}
		ops = append(ops, FieldOp{Path: c.Path, Kind: OpSet, Value: c.Desired})
	}
	return ops
}

// applyOps returns a copy of the live object with the operations
// applied. The input is never mutated.
func applyOps(live *unstructured.Unstructured, ops []FieldOp) *unstructured.Unstructured {
	merged := live.DeepCopy()
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			setNestedField(merged.Object, op.Path, op.Value)
		case OpRemove:
			unstructured.RemoveNestedField(merged.Object, op.Path...)
		}
	}
	return merged
}

// setNestedField writes the value at the path, creating intermediate
// maps as needed. unstructured.SetNestedField is not used because it
// rejects values that are not deep-copyable primitives.
func setNestedField(obj map[string]interface{}, path []string, value interface{}) {
	node := obj
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[key] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
}

// equalValue compares two decoded JSON values, tolerating the int64
// versus float64 representation difference for whole numbers.
func equalValue(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
