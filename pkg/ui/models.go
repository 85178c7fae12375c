// Package ui provides the Bubble Tea TUI for the feed pipeline.
package ui

// StatusModel is a placeholder for the status sub-model.
type StatusModel struct{}

// NewStatusModel creates a new status model.
func NewStatusModel() StatusModel {
	return StatusModel{}
}

// BooksModel is a placeholder for the order-book sub-model.
type BooksModel struct{}

// NewBooksModel creates a new books model.
func NewBooksModel() BooksModel {
	return BooksModel{}
}

// StatsModel is a placeholder for the stats sub-model.
type StatsModel struct{}

// NewStatsModel creates a new stats model.
func NewStatsModel() StatsModel {
	return StatsModel{}
}
