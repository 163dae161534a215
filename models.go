package main

import (
	"encoding/json"
	"time"

	"github.com/cpacia/classic-server/tournament"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Credentials struct {
	Username string `json:"username" gorm:"index"`
	Password string `json:"password"`
}

type PWChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type DBCredentials struct {
	gorm.Model
	Username     string
	PasswordHash string
}

// HistoricalTournament is one archived edition of the Classic.
type HistoricalTournament struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	Year       int            `json:"year" gorm:"uniqueIndex"`
	Name       string         `json:"name"`
	Date       string         `json:"date"`
	Venue      string         `json:"venue"`
	Status     string         `json:"status"`
	Captains   datatypes.JSON `json:"captains,omitempty" gorm:"type:json"`
	FinalScore datatypes.JSON `json:"finalScore,omitempty" gorm:"type:json"`
	Matches    datatypes.JSON `json:"matches,omitempty" gorm:"type:json"`
	MVP        string         `json:"mvp,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"-"`
}

type HistoricalMatch struct {
	Player1 string        `json:"player1"`
	Player2 string        `json:"player2"`
	Result  HistoricScore `json:"result"`
}

type HistoricScore struct {
	P1 float64 `json:"p1"`
	P2 float64 `json:"p2"`
}

// ArchiveRequest is the body of POST /api/history. Results are taken from
// the stored tournament.
type ArchiveRequest struct {
	Year  int    `json:"year"`
	Name  string `json:"name"`
	Date  string `json:"date"`
	Venue string `json:"venue"`
	MVP   string `json:"mvp"`
	Notes string `json:"notes"`
}

type SaveRequest struct {
	Password            string          `json:"password"`
	Data                json.RawMessage `json:"data"`
	ExpectedLastUpdated string          `json:"expectedLastUpdated"`
}

type SaveResponse struct {
	Success     bool   `json:"success"`
	LastUpdated string `json:"lastUpdated"`
	Sha         string `json:"sha"`
}

type RosterImportRequest struct {
	URL string `json:"url"`
}

type RosterImportResponse struct {
	Added       []string `json:"added"`
	Updated     []string `json:"updated"`
	Skipped     []string `json:"skipped"`
	LastUpdated string   `json:"lastUpdated"`
}

type TeamScore struct {
	Team   tournament.Team `json:"team"`
	Name   string          `json:"name"`
	Points float64         `json:"points"`
}

type MatchView struct {
	ID      int                   `json:"id"`
	Players [2]*tournament.Player `json:"players"`
	Front9  tournament.Result     `json:"front9"`
	Back9   tournament.Result     `json:"back9"`
	Holes   *tournament.HoleCard  `json:"holes,omitempty"`
	Status  tournament.Status     `json:"status"`
	Valid   bool                  `json:"valid"`
}

type Leaderboard struct {
	LastUpdated string              `json:"lastUpdated"`
	Teams       []TeamScore         `json:"teams"`
	Leader      tournament.Team     `json:"leader"`
	Progress    tournament.Progress `json:"progress"`
	Foursomes   [][]MatchView       `json:"foursomes"`
}

type DraftResponse struct {
	LastUpdated string `json:"lastUpdated"`
	tournament.DraftBoard
}
