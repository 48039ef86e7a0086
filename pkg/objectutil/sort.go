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

package objectutil

import (
	"errors"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ErrUnresolvableOrdering is returned when the configured kind order
// is contradictory.
var ErrUnresolvableOrdering = errors.New("unresolvable apply order")

// KindOrder holds the list of the Kubernetes API Kinds that
// describes in which order they are reconciled.
type KindOrder struct {
	// First contains the list of Kubernetes API Kinds
	// that are applied first and deleted last.
	First []string `json:"first"`

	// Last contains the list of Kubernetes API Kinds
	// that are applied last and deleted first.
	Last []string `json:"last"`
}

// DefaultKindOrder returns the partial ordering of the well-known
// Kubernetes kinds, according to which kinds depend on which.
// A Service comes before the workloads that refer to it, a Namespace
// before everything namespaced, webhooks after the objects they gate.
func DefaultKindOrder() KindOrder {
	return KindOrder{
		First: []string{
			"CustomResourceDefinition",
			"Namespace",
			"ResourceQuota",
			"StorageClass",
			"ServiceAccount",
			"PodSecurityPolicy",
			"Role",
			"ClusterRole",
			"RoleBinding",
			"ClusterRoleBinding",
			"ConfigMap",
			"Secret",
			"Service",
			"LimitRange",
			"PriorityClass",
			"PersistentVolume",
			"PersistentVolumeClaim",
			"Deployment",
			"StatefulSet",
			"CronJob",
			"PodDisruptionBudget",
		},
		Last: []string{
			"MutatingWebhookConfiguration",
			"ValidatingWebhookConfiguration",
		},
	}
}

// Validate fails when a kind is declared both first and last, which
// would make the ordering cyclic.
func (o KindOrder) Validate() error {
	last := make(map[string]bool, len(o.Last))
	for _, kind := range o.Last {
		last[kind] = true
	}
	for _, kind := range o.First {
		if last[kind] {
			return fmt.Errorf("%w: kind %s is declared both first and last",
				ErrUnresolvableOrdering, kind)
		}
	}
	return nil
}

// RankOf returns the position of the given kind in the partial
// ordering: negative for kinds applied first, positive for kinds
// applied last, zero for everything else.
func (o KindOrder) RankOf(kind string) int {
	for i, k := range o.First {
		if k == kind {
			return -len(o.First) + i
		}
	}
	for i, k := range o.Last {
		if k == kind {
			return 1 + i
		}
	}
	return 0
}

// IsClusterDefinition returns true for kinds that define types or
// namespaces that later objects depend on existing before they can
// themselves be applied.
func IsClusterDefinition(kind string) bool {
	switch kind {
	case "CustomResourceDefinition", "Namespace":
		return true
	}
	return false
}

// SortForApply orders the objects by kind rank. The sort is stable so
// that objects of equal rank keep their normalized input order.
func SortForApply(objects []*unstructured.Unstructured, order KindOrder) {
	sort.SliceStable(objects, func(i, j int) bool {
		return order.RankOf(objects[i].GetKind()) < order.RankOf(objects[j].GetKind())
	})
}

// SortForDelete orders the objects in the reverse of the apply order.
func SortForDelete(objects []*unstructured.Unstructured, order KindOrder) {
	sort.SliceStable(objects, func(i, j int) bool {
		return order.RankOf(objects[i].GetKind()) > order.RankOf(objects[j].GetKind())
	})
}
