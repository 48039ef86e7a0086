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

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create reconciles objects that do not exist on the cluster; objects that already exist are left untouched.",
	RunE:  runCreateCmd,
}

type createFlags struct {
	filename    []string
	kustomize   string
	ownerName   string
	concurrency int
	wait        bool
}

var createArgs createFlags

func init() {
	createCmd.Flags().StringSliceVarP(&createArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s). If a directory is specified, then all manifests in the directory tree will be processed recursively.")
	createCmd.Flags().StringVarP(&createArgs.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")
	createCmd.Flags().StringVarP(&createArgs.ownerName, "owner-name", "i", "",
		"The name under which the created objects are labeled.")
	createCmd.Flags().IntVar(&createArgs.concurrency, "concurrency", 4,
		"The number of objects reconciled in parallel within an ordering tier.")
	createCmd.Flags().BoolVar(&createArgs.wait, "wait", false,
		"Wait for the created Kubernetes objects to become ready.")

	rootCmd.AddCommand(createCmd)
}

func runCreateCmd(cmd *cobra.Command, args []string) error {
	if createArgs.kustomize == "" && len(createArgs.filename) == 0 {
		return fmt.Errorf("-f or -k is required")
	}

	objects, err := loadObjects(createArgs.kustomize, createArgs.filename)
	if err != nil {
		return err
	}

	rec, err := newReconciler()
	if err != nil {
		return err
	}

	logger.Println(fmt.Sprintf("creating %v manifest(s)...", len(objects)))

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	opts := reconciler.DefaultApplyOptions()
	opts.AllowPatch = false
	opts.Concurrency = createArgs.concurrency
	opts.OwnerName = createArgs.ownerName
	opts.OwnerNamespace = *kubeconfigArgs.Namespace

	report, err := rec.Reconcile(ctx, objects, opts)
	if err != nil {
		return err
	}

	if err := printReport(report); err != nil {
		return err
	}

	if createArgs.wait {
		logger.Println("waiting for resources to become ready...")
		if err := waitForReport(ctx, rec, report); err != nil {
			return err
		}
		logger.Println("all resources are ready")
	}

	return nil
}
