// Package report renders evaluation runs as PNG plots, interactive HTML
// charts and JSON.
package report
