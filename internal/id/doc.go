// Package id provides identifier generation for captured requests.
//
// Correlation ids are random UUIDs (v4). They are assigned when a request is
// first observed and are the only key used to match a response back to its
// request, so they must be unique for the lifetime of a store.
//
// Short ids are 8-character prefixes used for display in tables.
package id
