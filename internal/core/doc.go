// Package core provides the business logic for importing customers from
// spreadsheets and for single-record customer writes.
//
// The package has no transport or database code. Web handlers, the CLI and
// tests drive it through [Service] with any [Store] implementation.
//
// # Import Pipeline
//
// [Service.Import] streams one workbook through these stages:
//
//  1. The workbook package sniffs xlsx or csv and yields rows sheet by sheet
//  2. [DecodeRow] maps cells to an [ImportRow] using the active [Layout]
//  3. [Normalize] checks mandatory fields and parses the date of birth
//  4. [DedupGate] drops national IDs already seen in the file or the store
//  5. [Assembler] resolves city and country references under the
//     configured [ReferencePolicy] and links parents
//  6. [BatchCommitter] flushes accepted customers with one SaveAll per batch
//
// Rows that fail stages 3 to 5 are skipped and reported in the
// [ImportResult]. Store failures abort the import with an [*ImportError]
// that records how many customers earlier batches already committed. Under
// the file commit policy the whole import runs in one transaction and
// nothing is committed on failure.
//
// # Concurrency
//
// [ImportLimiter] bounds concurrent imports. Callers that cannot get a slot
// within the configured wait receive [ErrTooManyImports].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has its own code prefix:
//
//   - VAL: row and payload validation
//   - REF: city and country references
//   - FILE: uploaded file handling
//   - CUS: customer lookups
//   - IMP: import runs
//   - DB: database failures
package core
