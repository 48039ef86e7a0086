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
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const baselineAnnotation = "last-applied-configuration"

// baselineKey returns the annotation key under which the last-applied
// baseline is recorded, e.g. 'konverge.dev/last-applied-configuration'.
func (r *Reconciler) baselineKey() string {
	return r.owner.Group + "/" + baselineAnnotation
}

// setBaseline records the desired manifest as the new baseline on the
// object about to be sent to the cluster. The annotation itself is
// excluded from the recorded value so that repeated applies converge.
func (r *Reconciler) setBaseline(object, manifest *unstructured.Unstructured) error {
	recorded := manifest.DeepCopy()
	annotations := recorded.GetAnnotations()
	delete(annotations, r.baselineKey())
	if len(annotations) == 0 {
		annotations = nil
	}
	recorded.SetAnnotations(annotations)
	unstructured.RemoveNestedField(recorded.Object, "metadata", "resourceVersion")

	data, err := json.Marshal(recorded.Object)
	if err != nil {
		return fmt.Errorf("baseline encoding failed: %w", err)
	}

	annotations = object.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[r.baselineKey()] = string(data)
	object.SetAnnotations(annotations)
	return nil
}

// getBaseline decodes the baseline recorded on the live object.
// Its absence means the object was never applied by this tool.
func (r *Reconciler) getBaseline(live *unstructured.Unstructured) (*unstructured.Unstructured, bool) {
	annotations := live.GetAnnotations()
	data, ok := annotations[r.baselineKey()]
	if !ok {
		return nil, false
	}

	// decode through the unstructured scheme so that numbers keep the
	// same representation as the fetched live object
	base := &unstructured.Unstructured{}
	if err := base.UnmarshalJSON([]byte(data)); err != nil {
		return nil, false
	}
	return base, true
}
