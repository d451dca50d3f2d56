// Package sidebet manages wagers among round participants: bet definitions,
// cancellation rules, and settlement against frozen round results.
package sidebet

import (
	"time"
)

// Status is a side bet's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusSettled   Status = "settled"
)

// Category classifies a bet. Only WholeRound and HoleRange settle
// automatically from scores; the rest are templates surfaced through
// Suggestions and resolved by the players themselves.
type Category string

const (
	CategoryWholeRound   Category = "whole_round"
	CategoryHoleRange    Category = "hole_range"
	CategoryFirstBirdie  Category = "first_birdie"
	CategoryMostBirdies  Category = "most_birdies"
	CategoryMostPars     Category = "most_pars"
	CategoryClosestToPin Category = "closest_to_pin"
	CategoryLongestDrive Category = "longest_drive"
	CategoryCustom       Category = "custom"
)

// AutoSettles reports whether the category can be settled from scores alone.
func (c Category) AutoSettles() bool {
	return c == CategoryWholeRound || c == CategoryHoleRange
}

// Valid reports whether the category is a known one.
func (c Category) Valid() bool {
	switch c {
	case CategoryWholeRound, CategoryHoleRange, CategoryFirstBirdie,
		CategoryMostBirdies, CategoryMostPars, CategoryClosestToPin,
		CategoryLongestDrive, CategoryCustom:
		return true
	}
	return false
}

// SideBet is a wager among a subset of a round's players.
type SideBet struct {
	ID           string    `json:"id"`
	RoundID      string    `json:"round_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     Category  `json:"category"`
	Stake        int       `json:"stake"`
	CreatorID    string    `json:"creator_id"`
	Participants []string  `json:"participants"`
	HoleStart    int       `json:"hole_start,omitempty"` // hole_range only
	HoleEnd      int       `json:"hole_end,omitempty"`   // hole_range only
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Settlement is the final, immutable resolution of a bet. Ties split the
// stake evenly; any integer remainder goes to the lowest player id.
type Settlement struct {
	BetID     string         `json:"bet_id"`
	Winners   []string       `json:"winners"`
	Payouts   map[string]int `json:"payouts"`
	SettledAt time.Time      `json:"settled_at"`
}

// RoundInfo is the slice of round state the ledger needs. It is supplied by
// the round aggregate so this package stays free of round internals.
type RoundInfo struct {
	ID        string
	OwnerID   string
	Players   []string
	HoleCount int
	Completed bool
}

// HasPlayer reports whether the given player is part of the round.
func (r RoundInfo) HasPlayer(playerID string) bool {
	for _, id := range r.Players {
		if id == playerID {
			return true
		}
	}
	return false
}
