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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

var (
	// ErrMalformedManifest is returned when a document is not shaped
	// like a Kubernetes resource at a position where one is expected.
	ErrMalformedManifest = errors.New("malformed manifest")

	// ErrDuplicateIdentity is returned when two manifests in the same
	// desired set resolve to the same ResourceID.
	ErrDuplicateIdentity = errors.New("duplicate resource")
)

// ReadDocuments decodes the YAML or JSON documents from the given
// reader without flattening or validating them.
func ReadDocuments(r io.Reader) ([]*unstructured.Unstructured, error) {
	reader := yamlutil.NewYAMLOrJSONDecoder(r, 2048)
	var docs []*unstructured.Unstructured

	for {
		obj := &unstructured.Unstructured{}
		err := reader.Decode(obj)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if len(obj.Object) == 0 {
			continue
		}
		docs = append(docs, obj)
	}

	return docs, nil
}

// ReadObjects decodes the YAML or JSON documents from the given reader
// into a flat ordered list of unstructured Kubernetes API objects.
// List kinds are flattened depth-first, preserving document order.
func ReadObjects(r io.Reader) ([]*unstructured.Unstructured, error) {
	docs, err := ReadDocuments(r)
	if err != nil {
		return nil, err
	}
	return Normalize(docs)
}

// Flatten expands the given document trees into a flat ordered
// collection of resource manifests. Nested List objects (including
// lists of lists) are expanded in depth-first order. It fails when a
// node is not resource-shaped.
func Flatten(docs []*unstructured.Unstructured) ([]*unstructured.Unstructured, error) {
	var objects []*unstructured.Unstructured

	var walk func(node map[string]interface{}) error
	walk = func(node map[string]interface{}) error {
		obj := &unstructured.Unstructured{Object: node}
		if obj.IsList() || isListShaped(node) {
			items, _, err := unstructured.NestedSlice(node, "items")
			if err != nil {
				return fmt.Errorf("%w: list items are not objects", ErrMalformedManifest)
			}
			for _, item := range items {
				child, ok := item.(map[string]interface{})
				if !ok {
					return fmt.Errorf("%w: list item is not an object", ErrMalformedManifest)
				}
				if err := walk(child); err != nil {
					return err
				}
			}
			return nil
		}

		if obj.GetKind() == "" {
			return fmt.Errorf("%w: object has no kind field", ErrMalformedManifest)
		}

		objects = append(objects, obj)
		return nil
	}

	for _, doc := range docs {
		if err := walk(doc.Object); err != nil {
			return nil, err
		}
	}

	return objects, nil
}

// Normalize flattens the given document trees and validates the result:
// every manifest must carry a complete identity, declared exactly once.
// Callers that default namespaces must apply them to the Flatten output
// before this check runs.
func Normalize(docs []*unstructured.Unstructured) ([]*unstructured.Unstructured, error) {
	objects, err := Flatten(docs)
	if err != nil {
		return nil, err
	}

	seen := make(map[ResourceID]bool, len(objects))
	for _, obj := range objects {
		id, err := IDOf(obj)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %s is declared more than once", ErrDuplicateIdentity, id)
		}
		seen[id] = true
	}

	return objects, nil
}

// isListShaped reports whether the node carries an items array while
// lacking a kind field, e.g. templating output wrapping resources in
// an anonymous list.
func isListShaped(node map[string]interface{}) bool {
	if _, hasKind := node["kind"]; hasKind {
		return false
	}
	_, hasItems := node["items"]
	return hasItems
}

// ObjectToYAML encodes the given Kubernetes API object to YAML.
func ObjectToYAML(object *unstructured.Unstructured) string {
	var builder strings.Builder
	data, err := yaml.Marshal(object)
	if err != nil {
		return ""
	}
	builder.Write(data)
	builder.WriteString("---\n")

	return builder.String()
}

// ObjectsToYAML encodes the given Kubernetes API objects to a YAML multi-doc.
func ObjectsToYAML(objects []*unstructured.Unstructured) (string, error) {
	var builder strings.Builder
	for _, obj := range objects {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return "", err
		}
		builder.Write(data)
		builder.WriteString("---\n")
	}
	return builder.String(), nil
}

// ObjectsToJSON encodes the given Kubernetes API objects to a JSON list.
func ObjectsToJSON(objects []*unstructured.Unstructured) (string, error) {
	list := struct {
		ApiVersion string                       `json:"apiVersion,omitempty"`
		Kind       string                       `json:"kind,omitempty"`
		Items      []*unstructured.Unstructured `json:"items,omitempty"`
	}{
		ApiVersion: "v1",
		Kind:       "List",
		Items:      objects,
	}

	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}
