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
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stefanprodan/konverge/pkg/objectutil"
	"github.com/stefanprodan/konverge/pkg/reconciler"
	"github.com/stefanprodan/konverge/pkg/source"
	"github.com/stefanprodan/konverge/pkg/transport"
)

// loadObjects builds the desired set from the given sources; namespaced
// objects that carry no namespace get the session one.
func loadObjects(kustomizePath string, filePaths []string) ([]*unstructured.Unstructured, error) {
	return source.Build(kustomizePath, filePaths, os.Stdin, *kubeconfigArgs.Namespace)
}

func newReconciler() (*reconciler.Reconciler, error) {
	kubeTransport, err := transport.NewKubeTransport(kubeconfigArgs, cfg.FieldManager.Name)
	if err != nil {
		return nil, fmt.Errorf("client init failed: %w", err)
	}

	rec := reconciler.NewReconciler(kubeTransport, owner, *cfg.ApplyOrder)
	rec.SetRetry(reconciler.RetryOptions{
		Attempts: cfg.Retry.Attempts,
		Interval: cfg.Retry.Interval.Duration,
	})
	return rec, nil
}

// printReport writes the per-object outcomes to stderr and returns an
// error when the run contains failures or unresolved conflicts.
func printReport(report *reconciler.ExecutionReport) error {
	for _, entry := range report.Entries {
		switch entry.Action {
		case reconciler.FailedAction, reconciler.ConflictAction:
			logger.Println(`✗`, entry.String())
		default:
			logger.Println(`►`, entry.String())
		}
	}

	if report.HasFailures() {
		return fmt.Errorf("reconciliation failed")
	}
	return nil
}

// waitForReport blocks until the applied objects become ready and the
// pruned objects are terminated.
func waitForReport(ctx context.Context, rec *reconciler.Reconciler, report *reconciler.ExecutionReport) error {
	var applied []objectutil.ResourceID
	var deleted []objectutil.ResourceID
	for _, entry := range report.Entries {
		switch entry.Action {
		case reconciler.CreatedAction, reconciler.PatchedAction, reconciler.UnchangedAction:
			applied = append(applied, entry.ID)
		case reconciler.DeletedAction:
			deleted = append(deleted, entry.ID)
		}
	}

	waitOpts := reconciler.DefaultWaitOptions()
	waitOpts.Timeout = rootArgs.timeout

	if len(applied) > 0 {
		notReady := false
		for _, result := range rec.WaitAll(ctx, applied, waitOpts) {
			if !result.Ready {
				logger.Println(`✗`, result.String())
				notReady = true
			}
		}
		if notReady {
			return fmt.Errorf("timed out waiting for resources to become ready")
		}
	}

	if len(deleted) > 0 {
		if err := rec.WaitForTermination(ctx, deleted, waitOpts); err != nil {
			return fmt.Errorf("waiting for termination failed, error: %w", err)
		}
	}

	return nil
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
