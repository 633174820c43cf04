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


// Package ai provides abstractions for the external model services ragstore
// depends on.
//
// The embedding model and the generation model are external collaborators:
// ragstore never implements them, it only calls them through narrow
// interfaces. This package defines those interfaces:
//
//   - Embedder: turns text into fixed-dimension vectors
//   - Generator: produces an answer from a query and retrieved context
//   - Provider: aggregates both for convenient initialization and teardown
//
// # Implementation Packages
//
//   - ai/openai: production implementation against OpenAI-compatible APIs
//     (Ollama, LocalAI, vLLM, OpenAI itself)
//   - ai/mock: deterministic test doubles; the mock embedder derives vectors
//     from a text hash so tests are reproducible without a model server
//
// # Constructor Return Type Pattern
//
// Production constructors return interface types to enforce abstraction.
// Mock constructors return concrete types so tests can inject behavior and
// assert call counts.
package ai
