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
	"context"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/konverge/pkg/objectutil"
	"github.com/stefanprodan/konverge/pkg/reconciler"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Diff compares the local Kubernetes manifests with the in-cluster objects and prints the pending changes to stdout.",
	RunE:  runDiffCmd,
}

type diffFlags struct {
	filename  []string
	kustomize string
	ownerName string
	prune     bool
}

var diffArgs diffFlags

func init() {
	diffCmd.Flags().StringSliceVarP(&diffArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s). If a directory is specified, then all manifests in the directory tree will be processed recursively.")
	diffCmd.Flags().StringVarP(&diffArgs.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")
	diffCmd.Flags().StringVarP(&diffArgs.ownerName, "owner-name", "i", "",
		"The name under which the applied objects are labeled.")
	diffCmd.Flags().BoolVar(&diffArgs.prune, "prune", false,
		"Include the stale objects that an update with pruning would delete.")

	rootCmd.AddCommand(diffCmd)
}

func runDiffCmd(cmd *cobra.Command, args []string) error {
	if diffArgs.kustomize == "" && len(diffArgs.filename) == 0 {
		return fmt.Errorf("-f or -k is required")
	}
	if diffArgs.prune && diffArgs.ownerName == "" {
		return fmt.Errorf("--prune requires --owner-name")
	}

	objects, err := loadObjects(diffArgs.kustomize, diffArgs.filename)
	if err != nil {
		return err
	}

	rec, err := newReconciler()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	if diffArgs.ownerName != "" {
		rec.SetOwnerLabels(objects, diffArgs.ownerName, *kubeconfigArgs.Namespace)
	}

	diffs, err := rec.DiffAll(ctx, objects, false)
	if err != nil {
		return err
	}

	if diffArgs.prune {
		stale, err := rec.StaleObjects(ctx, objects, diffArgs.ownerName, *kubeconfigArgs.Namespace)
		if err != nil {
			return fmt.Errorf("stale object lookup failed: %w", err)
		}
		for _, live := range stale {
			id, err := objectutil.IDOf(live)
			if err != nil {
				continue
			}
			diffs = append(diffs, rec.Diff(id, nil, live, false))
		}
	}

	invalid := false
	var rows [][]string
	for _, diff := range diffs {
		switch diff.Action {
		case reconciler.DiffCreate:
			fmt.Println(`►`, diff.ID.String(), "created")
		case reconciler.DiffDelete:
			fmt.Println(`►`, diff.ID.String(), "deleted")
		case reconciler.DiffPatch:
			fmt.Println(`►`, diff.ID.String(), "drifted")
			if err := printObjectDiff(diff.Live, diff.Merged); err != nil {
				return err
			}
		case reconciler.DiffConflict:
			logger.Println(`✗`, diff.ID.String(), "conflict:", diff.Reason)
			invalid = true
		case reconciler.DiffError:
			logger.Println(`✗`, diff.ID.String(), diff.Reason)
			invalid = true
		}

		if diff.Action != reconciler.DiffNone {
			rows = append(rows, []string{diff.ID.String(), string(diff.Action), diff.Reason})
		}
	}

	if len(rows) > 0 {
		fmt.Println("")
		printTable(rootCmd.OutOrStdout(), []string{"object", "action", "details"}, rows)
	}

	if invalid {
		os.Exit(1)
	}
	return nil
}

// printObjectDiff renders the live to merged transition, with Secret
// data replaced by a fixed mask.
func printObjectDiff(live, merged *unstructured.Unstructured) error {
	const mask = "*****"

	if live.GetKind() == "Secret" {
		var err error
		if live, err = objectutil.MaskSecret(live, mask); err != nil {
			return fmt.Errorf("masking secret data failed, error: %w", err)
		}
		if merged, err = objectutil.MaskSecret(merged, mask); err != nil {
			return fmt.Errorf("masking secret data failed, error: %w", err)
		}
	}

	fmt.Println(cmp.Diff(live.Object, merged.Object))
	return nil
}
