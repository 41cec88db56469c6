// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"sync"
)

// StoredObject is an object held by MemoryStore.
type StoredObject struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// MemoryStore is an in-process ArtifactStore for local runs and tests. It
// counts calls so tests can assert on store traffic.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]StoredObject
	baseURL string
	bucket  string
	region  string

	existsCalls int
	putCalls    int
}

// NewMemoryStore builds an empty store that renders URLs like the S3 store would.
func NewMemoryStore(baseURL, bucket, region string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]StoredObject), baseURL: baseURL, bucket: bucket, region: region}
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string, cacheControl string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	m.objects[key] = StoredObject{Data: append([]byte(nil), data...), ContentType: contentType, CacheControl: cacheControl}
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return PublicURLFor(m.baseURL, m.bucket, m.region, key)
}

// Object returns the object stored under key.
func (m *MemoryStore) Object(key string) (StoredObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns every stored key.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

// PutCalls is the number of Put calls so far.
func (m *MemoryStore) PutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.putCalls
}

// ExistsCalls is the number of Exists calls so far.
func (m *MemoryStore) ExistsCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.existsCalls
}
