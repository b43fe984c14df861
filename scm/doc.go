// Package scm abstracts the version control backend a pending
// change lives in. A Source produces the unified diff of local
// changes, the author identity, and the checkout root; Detect
// inspects a working directory and picks the backend, with
// subversion taking fixed priority over git when both markers
// could coexist.
//
// Diff generation is deferred until first use and performed at
// most once per run; the result is cached for the remainder of
// the run.
package scm
