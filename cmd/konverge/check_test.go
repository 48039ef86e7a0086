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

package main

import (
	"fmt"
	"testing"

	. "github.com/onsi/gomega"
)

func TestCheck(t *testing.T) {
	g := NewWithT(t)
	id := randStringRunes(5)

	t.Run("validates manifests", func(t *testing.T) {
		dir, err := makeTestDir(id, []TestFile{
			{
				Name: "namespace.yaml",
				Body: fmt.Sprintf(`---
apiVersion: v1
kind: Namespace
metadata:
  name: "%[1]s"
`, id),
			},
			{
				Name: "config.yaml",
				Body: fmt.Sprintf(`---
apiVersion: v1
kind: ConfigMap
metadata:
  name: "%[1]s"
  namespace: "%[1]s"
data:
  key: test
`, id),
			},
		})
		g.Expect(err).NotTo(HaveOccurred())

		output, err := executeCommand(fmt.Sprintf(
			"check -f %s",
			dir,
		))

		g.Expect(err).NotTo(HaveOccurred())
		t.Logf("\n%s", output)
		g.Expect(output).To(MatchRegexp(fmt.Sprintf("Namespace/%s", id)))
		g.Expect(output).To(MatchRegexp("cluster"))
		g.Expect(output).To(MatchRegexp(fmt.Sprintf("ConfigMap/%s/%s", id, id)))
		g.Expect(output).To(MatchRegexp("namespaced"))
	})

	t.Run("rejects duplicate objects", func(t *testing.T) {
		manifest := fmt.Sprintf(`---
apiVersion: v1
kind: ConfigMap
metadata:
  name: "%[1]s"
  namespace: default
data:
  key: test
`, id)
		dir, err := makeTestDir("dup"+id, []TestFile{
			{Name: "one.yaml", Body: manifest},
			{Name: "two.yaml", Body: manifest},
		})
		g.Expect(err).NotTo(HaveOccurred())

		_, err = executeCommand(fmt.Sprintf(
			"check -f %s",
			dir,
		))

		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(MatchRegexp("declared more than once"))
	})

	t.Run("rejects duplicates hidden by namespace defaulting", func(t *testing.T) {
		explicit := fmt.Sprintf(`---
apiVersion: v1
kind: ConfigMap
metadata:
  name: "%[1]s"
  namespace: default
data:
  key: test
`, id)
		implicit := fmt.Sprintf(`---
apiVersion: v1
kind: ConfigMap
metadata:
  name: "%[1]s"
data:
  key: test
`, id)
		dir, err := makeTestDir("nsdup"+id, []TestFile{
			{Name: "explicit.yaml", Body: explicit},
			{Name: "implicit.yaml", Body: implicit},
		})
		g.Expect(err).NotTo(HaveOccurred())

		_, err = executeCommand(fmt.Sprintf(
			"check -f %s -n default",
			dir,
		))

		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(MatchRegexp("declared more than once"))
	})

	t.Run("rejects manifests without identity", func(t *testing.T) {
		dir, err := makeTestDir("broken"+id, []TestFile{
			{
				Name: "broken.yaml",
				Body: `---
apiVersion: v1
kind: ConfigMap
data:
  key: test
`,
			},
		})
		g.Expect(err).NotTo(HaveOccurred())

		_, err = executeCommand(fmt.Sprintf(
			"check -f %s",
			dir,
		))

		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(MatchRegexp("metadata.name not set"))
	})
}
