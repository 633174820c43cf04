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


// Package rag drives the retrieval-augmented query workflow.
//
// A query moves through a fixed sequence of stages:
//
//	embed -> retrieve -> build context -> generate -> assemble
//
// Each stage is a function that consumes the previous stage's typed result
// and produces the next, so an out-of-order transition does not compile.
// A failure at any stage terminates the query with a single QueryError
// naming the stage and carrying the cause.
//
// # Stage Semantics
//
//   - embed: the query text is turned into a vector by the external
//     embedder. Failure skips retrieval entirely.
//   - retrieve: cosine search over the tenant's partition, under the
//     cache's shared read lock. The retrieval depth (top-k) is configured
//     independently of the caller's max results, leaving headroom for
//     re-ranking.
//   - build context: retrieved chunk texts are concatenated in rank order
//     up to a byte budget. Hits that don't fit are dropped whole, from the
//     bottom of the ranking; an included chunk's text is never cut.
//   - generate: the external generator is always invoked, even with empty
//     context, so a tenant with no documents still receives an answer.
//     Generation is the only retried stage.
//   - assemble: sources are truncated to the caller's max results.
//     Confidence is binary: 1 when retrieved context informed the answer,
//     0 when the generator ran without context.
//
// No lock is held while calling the embedder or generator.
package rag
