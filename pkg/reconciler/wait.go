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

package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"

	"github.com/stefanprodan/konverge/pkg/objectutil"
)

// WaitOptions controls readiness polling.
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultWaitOptions polls every two seconds for up to a minute.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Interval: 2 * time.Second,
		Timeout:  time.Minute,
	}
}

// WaitResult is the readiness outcome of one object. TimedOut is a
// valid non-fatal outcome; Err is set only for permanent failures.
type WaitResult struct {
	ID       objectutil.ResourceID
	Ready    bool
	TimedOut bool
	Status   string
	Err      error
}

func (w WaitResult) String() string {
	switch {
	case w.Ready:
		return fmt.Sprintf("%s is ready", w.ID)
	case w.TimedOut:
		return fmt.Sprintf("%s timeout waiting for readiness, last status: %s", w.ID, w.Status)
	default:
		return fmt.Sprintf("%s wait failed: %v", w.ID, w.Err)
	}
}

// WaitReady polls the object's live state until its computed status is
// Current or the deadline elapses. Readiness is evaluated per kind by
// kstatus: replica counts for workloads, terminal phases for the rest.
func (r *Reconciler) WaitReady(ctx context.Context, id objectutil.ResourceID, opts WaitOptions) WaitResult {
	result := WaitResult{ID: id, Status: "unknown"}

	err := wait.PollImmediateWithContext(ctx, opts.Interval, opts.Timeout, func(ctx context.Context) (bool, error) {
		object, err := r.transport.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) || IsTransient(err) {
				return false, nil
			}
			return false, err
		}

		res, err := status.Compute(object)
		if err != nil {
			return false, err
		}
		result.Status = res.Status.String()
		return res.Status == status.CurrentStatus, nil
	})

	switch {
	case err == nil:
		result.Ready = true
	case errors.Is(err, wait.ErrWaitTimeout):
		result.TimedOut = true
	default:
		result.Err = err
	}
	return result
}

// WaitAll waits for every object concurrently. One object timing out
// or failing never aborts the sibling waits; the caller gets one
// result per identity, in input order.
func (r *Reconciler) WaitAll(ctx context.Context, ids []objectutil.ResourceID, opts WaitOptions) []WaitResult {
	results := make([]WaitResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id objectutil.ResourceID) {
			defer wg.Done()
			results[i] = r.WaitReady(ctx, id, opts)
		}(i, id)
	}
	wg.Wait()
	return results
}

// WaitForTermination polls until the given objects are gone from the
// cluster, used after pruning or deleting with wait enabled.
func (r *Reconciler) WaitForTermination(ctx context.Context, ids []objectutil.ResourceID, opts WaitOptions) error {
	for _, id := range ids {
		id := id
		err := wait.PollImmediateWithContext(ctx, opts.Interval, opts.Timeout, func(ctx context.Context) (bool, error) {
			_, err := r.transport.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return true, nil
			}
			if err != nil && !IsTransient(err) {
				return false, err
			}
			return false, nil
		})
		if err != nil {
			return fmt.Errorf("%s termination wait failed: %w", id, err)
		}
	}
	return nil
}
