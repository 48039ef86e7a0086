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
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/stefanprodan/konverge/pkg/config"
	"github.com/stefanprodan/konverge/pkg/reconciler"
)

var VERSION = "1.0.0-dev.0"

const PROJECT = "konverge"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility to validate, diff and reconcile Kubernetes configuration.",
	Long: `Konverge converges Kubernetes clusters toward a desired set of manifests
using client-side three-way merge.

Validate and render Kubernetes resources:

- konverge show [-f <manifest path>] [-k <overlay path>] [-o yaml|json]
- konverge check [-f] [-k]

Compare the desired set with the in-cluster objects:

- konverge diff [-f] [-k] [-i <owner name>] --prune

Reconcile the in-cluster objects:

- konverge create [-f] [-k] --wait
- konverge update [-f] [-k] [-i <owner name>] --create --force --prune --wait
- konverge delete [-f] [-k] --wait
`,
}

type rootFlags struct {
	timeout time.Duration
}

var (
	rootArgs = rootFlags{}
	logger   = stderrLogger{stderr: os.Stderr}
	cfg      = config.NewConfig()
	owner    = reconciler.Owner{
		Field: cfg.FieldManager.Name,
		Group: cfg.FieldManager.Group,
	}
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", time.Minute,
		"The length of time to wait before giving up on the current operation.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	defaultNamespace := "default"
	kubeconfigArgs.Namespace = &defaultNamespace
	rootCmd.PersistentFlags().StringVarP(kubeconfigArgs.Namespace, "namespace", "n", *kubeconfigArgs.Namespace,
		"The namespace assigned to namespaced objects that carry none.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	loadConfig()
	if err := rootCmd.Execute(); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
}

func loadConfig() {
	if c, err := config.Read(""); err != nil {
		logger.Println(`✗`, fmt.Errorf("loading the config failed, error: %w", err))
	} else {
		cfg = c
	}

	owner = reconciler.Owner{
		Field: cfg.FieldManager.Name,
		Group: cfg.FieldManager.Group,
	}
}
