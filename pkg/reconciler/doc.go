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

// Package reconciler converges a Kubernetes cluster toward a desired
// set of resource manifests.
//
// The Reconciler can be used to write a declarative delivery tool that:
// - resolves the identity of each manifest and fetches its live state
// - computes a three-way merge between the desired manifest, the live
//   object and the last-applied baseline recorded on the cluster
// - preserves fields owned by the server or by other actors, and
//   reports a conflict when an externally modified field is changed
// - orders the operations in tiers (CRDs and Namespaces first,
//   webhooks last, deletions last of all)
// - executes each tier with a bounded worker pool, retrying transient
//   transport failures with exponential backoff
// - deletes objects that are subject to garbage collection
// - waits for the applied objects to be fully reconciled by looking up
//   their readiness status
package reconciler
