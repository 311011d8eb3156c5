package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/slanderboard/internal/domain"
)

// aggregateScores sums vote values by submission id
func aggregateScores(votes []domain.VoteRow) map[int64]int64 {
	scores := make(map[int64]int64, len(votes))
	for _, v := range votes {
		scores[v.SlanderID] += int64(v.Value)
	}
	return scores
}

// normalizeRow turns a joined submission row into a scored item. A missing
// player leaves the id null and name and league empty; a missing submitter
// profile leaves the username null.
func normalizeRow(row domain.SubmissionRow, score int64) domain.ScoredItem {
	item := domain.ScoredItem{
		ID:        row.ID,
		Text:      row.Text,
		Player:    domain.PlayerRef{ID: row.PlayerID},
		Score:     score,
		CreatedAt: row.CreatedAt,
		Submitter: domain.Submitter{Username: row.SubmitterUsername},
	}
	if row.PlayerName != nil {
		item.Player.FullName = *row.PlayerName
	}
	if row.PlayerLeague != nil {
		item.Player.League = domain.League(*row.PlayerLeague)
	}
	return item
}

// sortItems orders by score, then newest first, then id
func sortItems(items []domain.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// mergeUserVotes sets userVote on each item from the user's own votes.
// Items the user has not voted on keep 0.
func mergeUserVotes(ctx context.Context, votes VoteReader, userID string, items []domain.ScoredItem) error {
	if userID == "" || len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	mine, err := votes.UserVotes(ctx, userID, ids)
	if err != nil {
		return fmt.Errorf("getting user votes: %w", err)
	}
	for i := range items {
		items[i].UserVote = mine[items[i].ID]
	}
	return nil
}
