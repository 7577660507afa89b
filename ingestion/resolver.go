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


package ingestion

import (
	"context"

	"github.com/poiesic/voxbank/core"
	"github.com/poiesic/voxbank/storage"
)

// Resolver derives item identities and checks them against a collection.
type Resolver struct {
	Prefix string
}

// NewResolver creates a resolver. An empty prefix means core.DefaultIDPrefix.
func NewResolver(prefix string) Resolver {
	if prefix == "" {
		prefix = core.DefaultIDPrefix
	}
	return Resolver{Prefix: prefix}
}

// Identity returns the item identity of a filename.
func (r Resolver) Identity(filename string) core.ItemID {
	return core.IdentityFor(r.Prefix, filename)
}

// Exists reports whether id is already stored in the collection.
func (r Resolver) Exists(ctx context.Context, collection storage.Collection, id core.ItemID) (bool, error) {
	found, err := collection.Get(ctx, id)
	if err != nil {
		return false, err
	}
	_, ok := found[id]
	return ok, nil
}
