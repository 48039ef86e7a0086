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

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete removes the given Kubernetes objects from the cluster in reverse apply order.",
	RunE:  runDeleteCmd,
}

type deleteFlags struct {
	filename  []string
	kustomize string
	wait      bool
}

var deleteArgs deleteFlags

func init() {
	deleteCmd.Flags().StringSliceVarP(&deleteArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s). If a directory is specified, then all manifests in the directory tree will be processed recursively.")
	deleteCmd.Flags().StringVarP(&deleteArgs.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")
	deleteCmd.Flags().BoolVar(&deleteArgs.wait, "wait", false,
		"Wait for the deleted Kubernetes objects to be terminated.")

	rootCmd.AddCommand(deleteCmd)
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	if deleteArgs.kustomize == "" && len(deleteArgs.filename) == 0 {
		return fmt.Errorf("-f or -k is required")
	}

	objects, err := loadObjects(deleteArgs.kustomize, deleteArgs.filename)
	if err != nil {
		return err
	}

	rec, err := newReconciler()
	if err != nil {
		return err
	}

	logger.Println(fmt.Sprintf("deleting %v manifest(s)...", len(objects)))

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	opts := reconciler.DefaultApplyOptions()
	report, err := rec.Delete(ctx, objects, opts)
	if err != nil {
		return err
	}

	if err := printReport(report); err != nil {
		return err
	}

	if deleteArgs.wait {
		logger.Println("waiting for resources to be terminated...")
		if err := waitForReport(ctx, rec, report); err != nil {
			return err
		}
		logger.Println("all resources have been deleted")
	}

	return nil
}
