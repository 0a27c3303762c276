// Package core provides the business logic for inventory ledger imports.
//
// This package holds the domain logic independent of any transport layer.
// The web server and the ledger-import CLI both drive it through [Service].
//
// # Import flow
//
// A sheet (.xlsx or .csv) is decoded into [RawRow] values by [DecodeSheet]
// and handed to [ImportPipeline.Import], which runs:
//
//  1. [RowValidator]: every row is checked; any problem rejects the batch
//  2. [DuplicateGuard]: any (date, SKU) already stored rejects the batch
//  3. [RecordMapper]: rows become [InventoryRecord] values; a row that
//     cannot be mapped is skipped and counted
//  4. one [BatchInserter.InsertBatch] transaction commits everything
//
// Nothing is written unless every step succeeds. Failures are returned as
// *[ImportError] carrying the stage reached and the diagnostics to show.
//
// # Dates
//
// Ledger sheets mix regional date conventions. [ParseDate] tries an ordered
// table of layouts; ambiguous tokens resolve day-first before month-first.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - VAL000-VAL005, DUP001: Import rejections
//   - DB001-DB008: Database errors
//   - FILE001-FILE006: File errors
//   - UPL002-UPL005, RATE001: Request errors
//
// # History
//
// Every import attempt that reaches decoding is recorded as an
// [ImportBatch]. [Service.StartHistoryScheduler] purges old entries on a
// cron schedule.
package core
