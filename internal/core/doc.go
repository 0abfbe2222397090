// Package core provides the business logic for pipeline template imports.
//
// The package has no transport dependencies; the web server, the CLI and
// tests all drive it through [Service] or [Importer] directly.
//
// # Batch Import
//
// A batch is a list of [ImportItem]s, each carrying a transient id that is
// only meaningful inside the batch. Items are processed in order inside one
// [TransactionScope]:
//
//  1. The business id, when given, is substituted into the pipeline tree
//     ([ReplaceBizID]).
//  2. SubProcess nodes referring to earlier items are rewritten to the
//     persisted ids bound so far ([ResolveSubprocessReferences]).
//  3. The item is persisted: an override updates an existing template, a
//     refer aliases one without copying, anything else creates a new one.
//  4. The transient id is bound to the resulting persisted id.
//
// Per-item problems are reported as failed [OperationOutcome]s and do not
// stop the batch. Any returned error rolls back the whole batch.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
//
//   - IMP001-IMP005: Import errors (malformed items, busy, batch size)
//   - TPL001: Template errors
//   - DB001-DB005: Database errors
//   - REQ001-REQ003: Request errors (payload, cancelled, timeout)
//
// # Audit Logging
//
// Every persisted create, update and refer is recorded with a severity:
//
//   - Low: Refer
//   - Medium: Create
//   - High: Update (overwrites an existing template)
package core
