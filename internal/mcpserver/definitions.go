package mcpserver

// MetricDefinitions documents how every figure the tools return is derived,
// so LLM consumers can explain numbers instead of guessing.
const MetricDefinitions = `# Ops Dashboard Metric Definitions

## Status buckets

Each task's ` + "`Status`" + ` is lowercased, trimmed and matched against keyword
sets in this order; the first bucket with a keyword contained in the status wins.

| Bucket   | Keywords                          |
|----------|-----------------------------------|
| open     | open, not started, 🔴              |
| working  | working, in progress, 🟡           |
| done     | done, complete, 🟢                 |
| archived | archived, archive                 |

A status matching nothing is **unclassified**. It counts toward totals only.

## Executive metrics

- ` + "`active_tasks`" + `: tasks in the open bucket.
- ` + "`in_progress_tasks`" + `: tasks in the working bucket.
- ` + "`completion_rate`" + `: (done + archived) / total × 100, one decimal.
- ` + "`overdue_tasks`" + `: tasks whose status is exactly one of *open*, *working*,
  *in progress*, *not started* and whose ` + "`Date Assigned`" + ` (YYYY-MM-DD) is more
  than the overdue threshold (default 30 days) in the past. Blank or invalid
  dates are never overdue.

## Project rollups

Rows are grouped by trimmed, case-insensitive ` + "`Project`" + `.
` + "`health_score`" + ` = round((done + 0.5 × working) / total × 100). Archived
tasks count toward the total but not toward health.

## Columns

Column lookup accepts exact names or names with a ` + "`___suffix`" + ` (for example
` + "`Status___2`" + `), taking the first such column in sheet order.

## History

A run is recorded each time a fetched snapshot's content checksum differs
from the previous one. ` + "`get_metrics_history`" + ` lists runs newest first.
`
