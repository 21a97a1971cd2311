// Copyright 2025 Poiesic Systems
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

package badger

// Repositories bundles the repositories that share one backend.
type Repositories struct {
	Backend     *Backend
	Identifiers *IdentifierRepository
	Entities    *EntityRepository
	Labels      *LabelRepository
	Checkpoints *CheckpointRepository
}

// Close closes the repositories and then the backend.
func (r *Repositories) Close() error {
	r.Labels.Close()
	r.Entities.Close()
	r.Identifiers.Close()
	return r.Backend.Close()
}

// NewRepositories opens repositories over an existing backend.
func NewRepositories(backend *Backend) (*Repositories, error) {
	identifiers, err := NewIdentifierRepository(backend)
	if err != nil {
		return nil, err
	}
	entities, err := NewEntityRepository(backend)
	if err != nil {
		identifiers.Close()
		return nil, err
	}
	labels, err := NewLabelRepository(backend)
	if err != nil {
		entities.Close()
		identifiers.Close()
		return nil, err
	}
	return &Repositories{
		Backend:     backend,
		Identifiers: identifiers,
		Entities:    entities,
		Labels:      labels,
		Checkpoints: NewCheckpointRepository(backend),
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	repos, err := NewRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return repos, nil
}
