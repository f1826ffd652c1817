package domain

import "time"

// FeaturedEntry places a doctor in the curated featured list. Entries are ordered by
// Rank ascending; ranks are unique but not necessarily dense.
type FeaturedEntry struct {
	EntityID string    `json:"entityId"`
	Rank     int       `json:"rank"`
	AddedAt  time.Time `json:"addedAt"`
	AddedBy  string    `json:"addedBy"`
}

// RankChange moves one entry from rank From to rank To.
type RankChange struct {
	EntityID string `json:"entityId"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}
