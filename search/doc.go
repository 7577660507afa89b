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


// Package search finds stored recordings that sound like a given one.
//
// A query is either an audio file, which goes through the same extraction
// and projection as ingestion, or the identity of a recording already in
// the collection. Results are ranked by ascending Euclidean distance
// between embeddings. Because the embedding is not normalized, mean pitch
// (in Hz) dominates the distance.
package search
