// Package purge deletes records ahead of their TTL expiry.
//
// A Controller run computes one deletion threshold from the current time and
// a horizon in days, then walks a single store scan. Every record whose
// expiration falls strictly before the threshold is a match. Matches are
// deleted until the run's budget is spent; later matches are still counted
// so the summary shows how many records the budget left behind.
//
// Progress is logged each time the match count reaches a multiple of the
// progress interval (10,000 by default).
//
// The Scheduler repeats a run on a cron schedule.
package purge
