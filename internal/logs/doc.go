// Package logs reads the daemon log file with bounded memory.
//
// A negative offset tails the last Limit lines; a non-negative offset resumes
// where a previous call stopped. Wait turns a read into a long poll that
// returns as soon as new lines land, so follow mode does not busy-spin. Both
// the `likeness logs` command and the daemon's /api/logs endpoint read
// through this package.
package logs
