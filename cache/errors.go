// Copyright 2026 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cache

import "errors"

var (
	// ErrStoreRequired is returned when a partition store is not provided.
	ErrStoreRequired = errors.New("partition store required")

	// ErrLockTimeout indicates the per-tenant lock could not be acquired
	// before the caller's deadline.
	ErrLockTimeout = errors.New("tenant lock acquisition timed out")

	// ErrTenantUnserviceable indicates the tenant's partition was found
	// corrupted at load time. The cache refuses to serve the tenant; it does
	// not auto-delete or auto-repair.
	ErrTenantUnserviceable = errors.New("tenant unserviceable")

	// ErrCacheClosed indicates the cache has been shut down.
	ErrCacheClosed = errors.New("partition cache is closed")
)
