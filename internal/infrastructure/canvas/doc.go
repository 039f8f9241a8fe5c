// Package canvas draws documents directly as PDF with fpdf: the nine-up
// work slip sheets, the single lab slip and, when configured, the results
// report. It also hosts the pagination engine that both rendering backends
// use to break the results table into pages.
package canvas
