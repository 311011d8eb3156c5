package domain

import (
	"time"
)

// League is one of the fixed set of supported football leagues
type League string

const (
	LeagueEPL        League = "EPL"
	LeagueLaLiga     League = "LaLiga"
	LeagueSerieA     League = "SerieA"
	LeagueBundesliga League = "Bundesliga"
	LeagueLigue1     League = "Ligue1"
)

// Leagues lists every valid league in display order
var Leagues = []League{LeagueEPL, LeagueLaLiga, LeagueSerieA, LeagueBundesliga, LeagueLigue1}

// Valid reports whether l is a known league
func (l League) Valid() bool {
	for _, known := range Leagues {
		if l == known {
			return true
		}
	}
	return false
}

// Period is the leaderboard time window
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// DefaultPeriod is used by the HTTP layer when no period is supplied
const DefaultPeriod = PeriodWeek

// Since returns the start of the window ending at now. Month and year are
// calendar offsets, week is seven days.
func (p Period) Since(now time.Time) (time.Time, error) {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth:
		return now.AddDate(0, -1, 0), nil
	case PeriodYear:
		return now.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, ErrInvalidPeriod
	}
}

// Player is a footballer that slander names are attached to
type Player struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	League   League `json:"league"`
}

// PlayerRef is the player as embedded in a scored item. ID is null when the
// joined player row is missing.
type PlayerRef struct {
	ID       *int64 `json:"id"`
	FullName string `json:"full_name"`
	League   League `json:"league"`
}

// Submitter identifies who submitted a slander name
type Submitter struct {
	Username *string `json:"username"`
}

// ScoredItem is a single leaderboard entry
type ScoredItem struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Player    PlayerRef `json:"player"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	Submitter Submitter `json:"submitter"`
	UserVote  int       `json:"userVote"`
}

// SubmissionRow is a slander name joined with its player and submitter
// profile. Joined columns are nil when the related row is absent.
type SubmissionRow struct {
	ID                int64
	Text              string
	CreatedAt         time.Time
	PlayerID          *int64
	PlayerName        *string
	PlayerLeague      *string
	SubmitterUsername *string
}

// VoteRow is a stored vote as read for scoring
type VoteRow struct {
	SlanderID int64
	Value     int
	CreatedAt time.Time
}

// LeaderboardQuery holds validated leaderboard parameters
type LeaderboardQuery struct {
	Period Period `json:"period" validate:"required,oneof=week month year"`
	League League `json:"league" validate:"omitempty,league"`
}

// SubmitRequest is the body of a slander submission
type SubmitRequest struct {
	Slander  string `json:"slander" validate:"required,min=2,max=64"`
	RealName string `json:"realName" validate:"required,min=2,max=64"`
	League   League `json:"league" validate:"required,league"`
}

// VoteRequest is the body of a vote. Vote 0 removes the caller's vote.
type VoteRequest struct {
	SlanderID int64 `json:"slanderId" validate:"required,gt=0"`
	Vote      *int  `json:"vote" validate:"required,oneof=-1 0 1"`
}

// ClaimUsernameRequest is the body of a username claim
type ClaimUsernameRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20,username"`
}

// PlayerPage is the data shown on a player's detail page
type PlayerPage struct {
	Player Player       `json:"player"`
	Items  []ScoredItem `json:"items"`
}
