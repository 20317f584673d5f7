// Package catalog provides read-mostly access to the acquisition catalog
// written by the capture tool. All queries run against a single shared SQLite
// connection; writes are wrapped in one transaction per call.
package catalog
