// Package transport delivers an assembled submission to the
// try server. Two strategies exist: Direct posts the payload
// straight to the server over HTTP; Mediated commits the diff
// into a shared subversion store the server polls. The
// strategy is resolved exactly once per run, before any
// delivery attempt, either by explicit request or by probing
// what is configured.
package transport
