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

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show builds the given Kubernetes manifests and Kustomize overlays and prints the normalized multi-doc to stdout.",
	RunE:  runShowCmd,
}

type showFlags struct {
	filename  []string
	kustomize string
	output    string
}

var showArgs showFlags

func init() {
	showCmd.Flags().StringSliceVarP(&showArgs.filename, "filename", "f", nil,
		"Path to Kubernetes manifest(s). If a directory is specified, then all manifests in the directory tree will be processed recursively.")
	showCmd.Flags().StringVarP(&showArgs.kustomize, "kustomize", "k", "",
		"Path to a directory that contains a kustomization.yaml.")
	showCmd.Flags().StringVarP(&showArgs.output, "output", "o", "yaml",
		"Write manifests to stdout in YAML or JSON format.")

	rootCmd.AddCommand(showCmd)
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	if showArgs.kustomize == "" && len(showArgs.filename) == 0 {
		return fmt.Errorf("-f or -k is required")
	}

	objects, err := loadObjects(showArgs.kustomize, showArgs.filename)
	if err != nil {
		return err
	}

	objectutil.SortForApply(objects, *cfg.ApplyOrder)

	switch showArgs.output {
	case "yaml":
		yml, err := objectutil.ObjectsToYAML(objects)
		if err != nil {
			return err
		}
		rootCmd.Println(yml)
	case "json":
		json, err := objectutil.ObjectsToJSON(objects)
		if err != nil {
			return err
		}
		rootCmd.Println(json)
	default:
		return fmt.Errorf("unsupported output, can be yaml or json")
	}

	return nil
}
