package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/slanderboard/internal/domain"
)

type fakeVote struct {
	userID    string
	slanderID int64
	value     int
	createdAt time.Time
}

// fakeStore is an in-memory store with caller-controlled timestamps
type fakeStore struct {
	mu          sync.Mutex
	submissions []domain.SubmissionRow
	players     map[int64]domain.Player
	votes       []fakeVote
	usernames   map[string]string
	err         error
	nextID      int64

	userVoteCalls [][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:   map[int64]domain.Player{},
		usernames: map[string]string{},
	}
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func (f *fakeStore) addPlayer(id int64, name string, league domain.League) {
	f.players[id] = domain.Player{ID: id, FullName: name, League: league}
}

func (f *fakeStore) addSubmission(id int64, text string, playerID int64, createdAt time.Time) {
	row := domain.SubmissionRow{ID: id, Text: text, CreatedAt: createdAt}
	if p, ok := f.players[playerID]; ok {
		row.PlayerID = int64Ptr(p.ID)
		row.PlayerName = strPtr(p.FullName)
		row.PlayerLeague = strPtr(string(p.League))
	}
	f.submissions = append(f.submissions, row)
}

func (f *fakeStore) addVote(userID string, slanderID int64, value int, createdAt time.Time) {
	f.votes = append(f.votes, fakeVote{userID: userID, slanderID: slanderID, value: value, createdAt: createdAt})
}

func (f *fakeStore) VotesSince(_ context.Context, since time.Time, limit int) ([]domain.VoteRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.VoteRow
	for _, v := range f.votes {
		if !v.createdAt.Before(since) {
			out = append(out, domain.VoteRow{SlanderID: v.slanderID, Value: v.value, CreatedAt: v.createdAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) VotesFor(_ context.Context, ids []int64, limit int) ([]domain.VoteRow, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.VoteRow
	for _, v := range f.votes {
		if want[v.slanderID] {
			out = append(out, domain.VoteRow{SlanderID: v.slanderID, Value: v.value, CreatedAt: v.createdAt})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UserVotes(_ context.Context, userID string, ids []int64) (map[int64]int, error) {
	f.userVoteCalls = append(f.userVoteCalls, append([]int64(nil), ids...))
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[int64]int{}
	for _, v := range f.votes {
		if v.userID == userID && want[v.slanderID] {
			out[v.slanderID] = v.value
		}
	}
	return out, nil
}

func (f *fakeStore) SubmissionsByIDs(_ context.Context, ids []int64) ([]domain.SubmissionRow, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.SubmissionRow
	for _, s := range f.submissions {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) SubmissionsSince(_ context.Context, since time.Time, limit int) ([]domain.SubmissionRow, error) {
	var out []domain.SubmissionRow
	for _, s := range f.submissions {
		if !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SubmissionsForPlayer(_ context.Context, playerID int64, limit int) ([]domain.SubmissionRow, error) {
	var out []domain.SubmissionRow
	for _, s := range f.submissions {
		if s.PlayerID != nil && *s.PlayerID == playerID {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Player(_ context.Context, id int64) (*domain.Player, error) {
	p, ok := f.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

func (f *fakeStore) CastVote(_ context.Context, userID string, slanderID int64, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.votes {
		if v.userID == userID && v.slanderID == slanderID {
			if v.value != value {
				f.votes[i].value = value
				f.votes[i].createdAt = time.Now()
			}
			return nil
		}
	}
	f.votes = append(f.votes, fakeVote{userID: userID, slanderID: slanderID, value: value, createdAt: time.Now()})
	return nil
}

func (f *fakeStore) Unvote(_ context.Context, userID string, slanderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.votes {
		if v.userID == userID && v.slanderID == slanderID {
			f.votes = append(f.votes[:i], f.votes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) SubmitSlanderName(_ context.Context, _ string, realName string, league domain.League, text string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.submissions = append(f.submissions, domain.SubmissionRow{
		ID:           f.nextID,
		Text:         text,
		CreatedAt:    time.Now(),
		PlayerName:   strPtr(realName),
		PlayerLeague: strPtr(string(league)),
	})
	return f.nextID, nil
}

func (f *fakeStore) ClaimUsername(_ context.Context, userID, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for other, name := range f.usernames {
		if name == username && other != userID {
			return domain.ErrUsernameTaken
		}
	}
	f.usernames[userID] = username
	return nil
}

func (f *fakeStore) Username(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.usernames[userID], nil
}

var errStorage = &domain.QueryError{Op: "test", Err: errors.New("connection refused")}
