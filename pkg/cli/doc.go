// Package cli implements the wiretap command line: inspecting, exporting
// and clearing the persisted request log, issuing recorded requests, and
// serving the inspector API.
package cli
