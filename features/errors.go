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


package features

import "errors"

var (
	// ErrExtractionFailed indicates feature extraction failed for one recording.
	ErrExtractionFailed = errors.New("feature extraction failed")

	// ErrAnalyzerRequired indicates an Analyzer was not provided.
	ErrAnalyzerRequired = errors.New("analyzer is required")

	// ErrInvalidParams indicates analysis parameters are out of range.
	ErrInvalidParams = errors.New("invalid analysis parameters")
)
