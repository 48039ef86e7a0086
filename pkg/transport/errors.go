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

package transport

import (
	"errors"
	"fmt"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/stefanprodan/konverge/pkg/reconciler"
)

// classify maps an API server error to the reconciler's error tags:
// absence, optimistic concurrency rejection, retryable server or
// network trouble, or a permanent failure.
func classify(subject string, err error) error {
	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%s: %w", subject, reconciler.ErrNotFound)
	case apierrors.IsConflict(err):
		return &reconciler.VersionConflictError{Err: fmt.Errorf("%s: %w", subject, err)}
	case isRetryable(err):
		return &reconciler.TransientError{Err: fmt.Errorf("%s: %w", subject, err)}
	}
	return fmt.Errorf("%s: %w", subject, err)
}

func isRetryable(err error) bool {
	if apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsInternalError(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsUnexpectedServerError(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
