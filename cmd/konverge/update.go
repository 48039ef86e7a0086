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

	"github.com/spf13/cobra"

	"github.com/stefanprodan/konverge/pkg/reconciler"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update reconciles existing objects toward the given manifests using client-side three-way merge.",
	RunE:  runUpdateCmd,
}

type updateFlags struct {
	filename    []string
	kustomize   string
	ownerName   string
	concurrency int
	create      bool
	force       bool
	prune       bool
	wait        bool
}

var updateArgs updateFlags

func init() {
	updateCmd.Flags().StringSliceVarP(&updateArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s). If a directory is specified, then all manifests in the directory tree will be processed recursively.")
	updateCmd.Flags().StringVarP(&updateArgs.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")
	updateCmd.Flags().StringVarP(&updateArgs.ownerName, "owner-name", "i", "",
		"The name under which the applied objects are labeled, required for --prune.")
	updateCmd.Flags().IntVar(&updateArgs.concurrency, "concurrency", 4,
		"The number of objects reconciled in parallel within an ordering tier.")
	updateCmd.Flags().BoolVar(&updateArgs.create, "create", false,
		"Create objects that do not exist on the cluster.")
	updateCmd.Flags().BoolVar(&updateArgs.force, "force", false,
		"Override fields changed on the cluster outside of this tool instead of reporting a conflict.")
	updateCmd.Flags().BoolVar(&updateArgs.prune, "prune", false,
		"Delete stale objects from the cluster.")
	updateCmd.Flags().BoolVar(&updateArgs.wait, "wait", false,
		"Wait for the applied Kubernetes objects to become ready.")

	rootCmd.AddCommand(updateCmd)
}

func runUpdateCmd(cmd *cobra.Command, args []string) error {
	if updateArgs.kustomize == "" && len(updateArgs.filename) == 0 {
		return fmt.Errorf("-f or -k is required")
	}
	if updateArgs.prune && updateArgs.ownerName == "" {
		return fmt.Errorf("--prune requires --owner-name")
	}

	objects, err := loadObjects(updateArgs.kustomize, updateArgs.filename)
	if err != nil {
		return err
	}

	rec, err := newReconciler()
	if err != nil {
		return err
	}

	logger.Println(fmt.Sprintf("updating %v manifest(s)...", len(objects)))

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	opts := reconciler.DefaultApplyOptions()
	opts.AllowCreate = updateArgs.create
	opts.Force = updateArgs.force
	opts.Prune = updateArgs.prune
	opts.Concurrency = updateArgs.concurrency
	opts.OwnerName = updateArgs.ownerName
	opts.OwnerNamespace = *kubeconfigArgs.Namespace

	report, err := rec.Reconcile(ctx, objects, opts)
	if err != nil {
		return err
	}

	if err := printReport(report); err != nil {
		return err
	}

	if updateArgs.wait {
		logger.Println("waiting for resources to become ready...")
		if err := waitForReport(ctx, rec, report); err != nil {
			return err
		}
		logger.Println("all resources are ready")
	}

	return nil
}
