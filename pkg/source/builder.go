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

// Package source turns configuration sources into a normalized desired
// set of resource manifests. The evaluation engines behind a source
// (kustomize, or any generator whose output is piped in) are opaque to
// the rest of the tool: all that leaves this package is a flat,
// validated collection of manifests.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/kustomize/api/krusty"
	kustypes "sigs.k8s.io/kustomize/api/types"
	"sigs.k8s.io/kustomize/kyaml/filesys"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// Build produces the normalized desired set from the given sources:
// a kustomize overlay directory, and/or plain manifest files and
// directories scanned recursively. "-" as the sole filename reads a
// manifest stream from the reader (stdin). Namespaced objects without
// an explicit namespace are assigned the given one before identities
// are resolved, so that duplicates hidden by namespace defaulting are
// still an input error.
func Build(kustomizePath string, filePaths []string, stdin io.Reader, namespace string) ([]*unstructured.Unstructured, error) {
	var docs []*unstructured.Unstructured

	if len(filePaths) == 1 && filePaths[0] == "-" {
		d, err := objectutil.ReadDocuments(stdin)
		if err != nil {
			return nil, fmt.Errorf("decoding stdin failed: %w", err)
		}
		docs = append(docs, d...)
	} else {
		manifests, err := scan(filePaths)
		if err != nil {
			return nil, err
		}
		for _, manifest := range manifests {
			f, err := os.Open(manifest)
			if err != nil {
				return nil, err
			}
			d, err := objectutil.ReadDocuments(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("decoding %s failed: %w", manifest, err)
			}
			docs = append(docs, d...)
		}
	}

	if kustomizePath != "" {
		data, err := buildKustomization(kustomizePath)
		if err != nil {
			return nil, fmt.Errorf("kustomize build of %s failed: %w", kustomizePath, err)
		}
		d, err := objectutil.ReadDocuments(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding kustomize output failed: %w", err)
		}
		docs = append(docs, d...)
	}

	objects, err := objectutil.Flatten(docs)
	if err != nil {
		return nil, err
	}
	objectutil.SetDefaultNamespace(objects, namespace)

	return objectutil.Normalize(objects)
}

func scan(paths []string) ([]string, error) {
	var manifests []string

	for _, in := range paths {
		fi, err := os.Stat(in)
		if err != nil {
			return nil, err
		}

		switch mode := fi.Mode(); {
		case mode.IsDir():
			m, err := scanRec(in)
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m...)
		case mode.IsRegular():
			if matchExt(fi.Name()) {
				manifests = append(manifests, in)
			}
		}
	}

	return manifests, nil
}

func scanRec(dir string) ([]string, error) {
	var manifests []string
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() {
			m, err := scanRec(path.Join(dir, file.Name()))
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m...)
		}
		if matchExt(file.Name()) {
			manifests = append(manifests, path.Join(dir, file.Name()))
		}
	}
	return manifests, err
}

func matchExt(f string) bool {
	ext := path.Ext(f)
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}

// the kustomize build API is not safe for concurrent use
var kustomizeBuildMutex sync.Mutex

func buildKustomization(base string) ([]byte, error) {
	kustomizeBuildMutex.Lock()
	defer kustomizeBuildMutex.Unlock()

	kfile := path.Join(base, "kustomization.yaml")

	fs := filesys.MakeFsOnDisk()
	if !fs.Exists(kfile) {
		return nil, fmt.Errorf("%s not found", kfile)
	}

	if path.IsAbs(base) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		base, err = filepath.Rel(wd, base)
		if err != nil {
			return nil, err
		}
	}

	buildOptions := &krusty.Options{
		LoadRestrictions: kustypes.LoadRestrictionsNone,
		PluginConfig:     kustypes.DisabledPluginConfig(),
	}

	k := krusty.MakeKustomizer(buildOptions)
	m, err := k.Run(fs, base)
	if err != nil {
		return nil, err
	}

	return m.AsYaml()
}
