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

	"github.com/spf13/cobra"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check validates that the given manifests are well-formed, carry a complete identity and contain no duplicates.",
	RunE:  runCheckCmd,
}

type checkFlags struct {
	filename  []string
	kustomize string
}

var checkArgs checkFlags

func init() {
	checkCmd.Flags().StringSliceVarP(&checkArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s). If a directory is specified, then all manifests in the directory tree will be processed recursively.")
	checkCmd.Flags().StringVarP(&checkArgs.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")

	rootCmd.AddCommand(checkCmd)
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	if checkArgs.kustomize == "" && len(checkArgs.filename) == 0 {
		return fmt.Errorf("-f or -k is required")
	}

	// normalization rejects malformed nodes, incomplete identities
	// and duplicates
	objects, err := loadObjects(checkArgs.kustomize, checkArgs.filename)
	if err != nil {
		return err
	}

	if err := cfg.ApplyOrder.Validate(); err != nil {
		return err
	}

	rows := make([][]string, 0, len(objects))
	for _, object := range objects {
		id, err := objectutil.IDOf(object)
		if err != nil {
			return err
		}

		scope := "namespaced"
		if objectutil.IsClusterScoped(id.Kind) {
			scope = "cluster"
		}
		rows = append(rows, []string{id.String(), object.GetAPIVersion(), scope})
	}

	printTable(rootCmd.OutOrStdout(), []string{"object", "api version", "scope"}, rows)
	logger.Println(`►`, fmt.Sprintf("%v manifest(s) are valid", len(objects)))

	return nil
}
