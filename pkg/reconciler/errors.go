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
	"errors"
	"fmt"
)

// ErrNotFound reports that an object does not exist on the cluster.
// It is a valid fetch outcome, not a failure.
var ErrNotFound = errors.New("object not found")

// TransientError wraps a transport failure that is worth retrying,
// such as a network timeout or a 5xx server response.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient transport error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient returns true when the error chain contains a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// VersionConflictError wraps an optimistic concurrency rejection: the
// resource version sent with a patch no longer matches the server's.
// The caller is expected to re-fetch, re-diff and retry.
type VersionConflictError struct {
	Err error
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("resource version conflict: %v", e.Err)
}

func (e *VersionConflictError) Unwrap() error { return e.Err }

// IsVersionConflict returns true when the error chain contains a
// VersionConflictError.
func IsVersionConflict(err error) bool {
	var t *VersionConflictError
	return errors.As(err, &t)
}
