// Package cron is Mechaway's hot-reload scheduler: it watches the workflow
// registry for Cron-triggered workflows and keeps a github.com/robfig/cron/v3
// Cron instance's entries in sync with whatever is currently registered,
// without a process restart. Reconcile is cheap enough to run on a fixed
// interval — it diffs schedules rather than rebuilding the whole Cron.
package cron
