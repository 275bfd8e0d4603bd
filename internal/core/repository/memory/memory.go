// Package memory is an in-process implementation of every repository
// contract. It enforces the same uniqueness constraints as the SQL schema and
// gives WithinTx real rollback, so the Logic layer behaves identically on it.
// Operations are fully serialized; it is meant for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/duynhne/qa-service/internal/core/domain"
)

type txKey struct{}

// Store holds all tables. The zero value is not usable; call New.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

type state struct {
	nextID       int64
	users        map[int64]domain.UserRow
	sessions     map[string]domain.SessionRow
	votes        map[int64]domain.VoteRow
	questions    map[int64]domain.Question
	answers      map[int64]domain.Answer
	comments     map[int64]domain.Comment
	tags         map[string]int64
	questionTags map[int64][]domain.Tag
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: &state{
			users:        make(map[int64]domain.UserRow),
			sessions:     make(map[string]domain.SessionRow),
			votes:        make(map[int64]domain.VoteRow),
			questions:    make(map[int64]domain.Question),
			answers:      make(map[int64]domain.Answer),
			comments:     make(map[int64]domain.Comment),
			tags:         make(map[string]int64),
			questionTags: make(map[int64][]domain.Tag),
		},
		faults: make(map[string]error),
	}
}

func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.sessions = maps.Clone(s.sessions)
	c.votes = maps.Clone(s.votes)
	c.questions = maps.Clone(s.questions)
	c.answers = maps.Clone(s.answers)
	c.comments = maps.Clone(s.comments)
	c.tags = maps.Clone(s.tags)
	c.questionTags = make(map[int64][]domain.Tag, len(s.questionTags))
	for k, v := range s.questionTags {
		c.questionTags[k] = slices.Clone(v)
	}
	return &c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// FailNext makes the next call of the named method (e.g. "SessionRepository.Create")
// return err. Used to exercise rollback paths.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	s.faults[method] = err
	s.mu.Unlock()
}

// lock serializes an operation unless ctx already runs inside one of this
// store's transactions, which hold the lock for their whole duration.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fault(method string) error {
	err, ok := s.faults[method]
	if !ok {
		return nil
	}
	delete(s.faults, method)
	return err
}

// WithinTx implements domain.Transactor. State changes made by fn are
// discarded when it returns an error or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w: %v", domain.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s} }

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s} }

// Votes returns the vote repository view of the store.
func (s *Store) Votes() *VoteRepository { return &VoteRepository{s} }

// Content returns the content repository view of the store.
func (s *Store) Content() *ContentRepository { return &ContentRepository{s} }

// Profiles returns the profile repository view of the store.
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s} }

// UserRepository implements domain.UserRepository.
type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.UserRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("UserRepository.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("UserRepository.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.st.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) Create(ctx context.Context, username, email, passwordHash string) (*domain.UserRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("UserRepository.Create"); err != nil {
		return nil, err
	}
	for _, u := range r.s.st.users {
		if u.Username == username || u.Email == email {
			return nil, fmt.Errorf("%w: users username or email", domain.ErrConflict)
		}
	}
	u := domain.UserRow{
		ID:           r.s.st.id(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	r.s.st.users[u.ID] = u
	return &u, nil
}

// SessionRepository implements domain.SessionRepository.
type SessionRepository struct{ s *Store }

func (r *SessionRepository) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*domain.SessionRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("SessionRepository.Create"); err != nil {
		return nil, err
	}
	if _, ok := r.s.st.sessions[token]; ok {
		return nil, fmt.Errorf("%w: sessions token", domain.ErrConflict)
	}
	row := domain.SessionRow{
		ID:        r.s.st.id(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	r.s.st.sessions[token] = row
	return &row, nil
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string, _ bool) (*domain.SessionRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("SessionRepository.GetByToken"); err != nil {
		return nil, err
	}
	row, ok := r.s.st.sessions[token]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, token string) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("SessionRepository.Revoke"); err != nil {
		return false, err
	}
	row, ok := r.s.st.sessions[token]
	if !ok {
		return false, nil
	}
	row.Revoked = true
	r.s.st.sessions[token] = row
	return true, nil
}

func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("SessionRepository.RevokeAllForUser"); err != nil {
		return 0, err
	}
	var n int64
	for token, row := range r.s.st.sessions {
		if row.UserID == userID && !row.Revoked {
			row.Revoked = true
			r.s.st.sessions[token] = row
			n++
		}
	}
	return n, nil
}

// ListForUser returns the user's sessions ordered by creation. It is not part
// of domain.SessionRepository; tests use it to inspect the audit trail.
func (r *SessionRepository) ListForUser(ctx context.Context, userID int64) []domain.SessionRow {
	defer r.s.lock(ctx)()
	var rows []domain.SessionRow
	for _, row := range r.s.st.sessions {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// VoteRepository implements domain.VoteRepository.
type VoteRepository struct{ s *Store }

func (r *VoteRepository) FindByUserAndVotable(ctx context.Context, userID int64, votableType domain.VotableType, votableID int64, _ bool) (*domain.VoteRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("VoteRepository.FindByUserAndVotable"); err != nil {
		return nil, err
	}
	for _, v := range r.s.st.votes {
		if v.UserID == userID && v.VotableType == votableType && v.VotableID == votableID {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *VoteRepository) Create(ctx context.Context, vote domain.VoteRow) (*domain.VoteRow, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("VoteRepository.Create"); err != nil {
		return nil, err
	}
	for _, v := range r.s.st.votes {
		if v.UserID == vote.UserID && v.VotableType == vote.VotableType && v.VotableID == vote.VotableID {
			return nil, fmt.Errorf("%w: votes natural key", domain.ErrConflict)
		}
	}
	vote.ID = r.s.st.id()
	vote.CreatedAt = time.Now()
	r.s.st.votes[vote.ID] = vote
	return &vote, nil
}

func (r *VoteRepository) UpdateType(ctx context.Context, id int64, voteType domain.VoteType) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("VoteRepository.UpdateType"); err != nil {
		return err
	}
	v, ok := r.s.st.votes[id]
	if !ok {
		return nil
	}
	v.VoteType = voteType
	r.s.st.votes[id] = v
	return nil
}

func (r *VoteRepository) Delete(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("VoteRepository.Delete"); err != nil {
		return err
	}
	delete(r.s.st.votes, id)
	return nil
}

func (r *VoteRepository) Score(ctx context.Context, votableType domain.VotableType, votableID int64) (int, error) {
	defer r.s.lock(ctx)()
	return r.s.st.score(votableType, votableID), nil
}

// Count returns the number of vote rows for the votable.
func (r *VoteRepository) Count(ctx context.Context, votableType domain.VotableType, votableID int64) int {
	defer r.s.lock(ctx)()
	n := 0
	for _, v := range r.s.st.votes {
		if v.VotableType == votableType && v.VotableID == votableID {
			n++
		}
	}
	return n
}

func (s *state) score(votableType domain.VotableType, votableID int64) int {
	score := 0
	for _, v := range s.votes {
		if v.VotableType == votableType && v.VotableID == votableID {
			score += v.VoteType.Value()
		}
	}
	return score
}

// ContentRepository implements domain.ContentRepository.
type ContentRepository struct{ s *Store }

func (r *ContentRepository) FindVotableOwner(ctx context.Context, votableType domain.VotableType, id int64) (*int64, error) {
	defer r.s.lock(ctx)()
	switch votableType {
	case domain.VotableQuestion:
		if q, ok := r.s.st.questions[id]; ok {
			return &q.UserID, nil
		}
	case domain.VotableAnswer:
		if a, ok := r.s.st.answers[id]; ok {
			return &a.UserID, nil
		}
	default:
		return nil, fmt.Errorf("unknown votable type %q", votableType)
	}
	return nil, nil
}

func (r *ContentRepository) CreateQuestion(ctx context.Context, nq domain.NewQuestion) (*domain.Question, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ContentRepository.CreateQuestion"); err != nil {
		return nil, err
	}
	now := time.Now()
	q := domain.Question{
		ID:        r.s.st.id(),
		UserID:    nq.UserID,
		Title:     nq.Title,
		Body:      nq.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.st.questions[q.ID] = q

	seen := make(map[string]bool)
	for _, name := range nq.Tags {
		name = strings.ToLower(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		tagID, ok := r.s.st.tags[name]
		if !ok {
			tagID = r.s.st.id()
			r.s.st.tags[name] = tagID
		}
		r.s.st.questionTags[q.ID] = append(r.s.st.questionTags[q.ID], domain.Tag{ID: tagID, Name: name})
	}
	return &q, nil
}

func (r *ContentRepository) CreateAnswer(ctx context.Context, na domain.NewAnswer) (*domain.Answer, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ContentRepository.CreateAnswer"); err != nil {
		return nil, err
	}
	q, ok := r.s.st.questions[na.QuestionID]
	if !ok {
		return nil, fmt.Errorf("insert answer: question %d does not exist", na.QuestionID)
	}
	now := time.Now()
	a := domain.Answer{
		ID:         r.s.st.id(),
		QuestionID: na.QuestionID,
		UserID:     na.UserID,
		Body:       na.Body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.s.st.answers[a.ID] = a
	q.UpdatedAt = now
	r.s.st.questions[q.ID] = q
	return &a, nil
}

func (r *ContentRepository) CreateComment(ctx context.Context, nc domain.NewComment) (*domain.Comment, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ContentRepository.CreateComment"); err != nil {
		return nil, err
	}
	c := domain.Comment{
		ID:              r.s.st.id(),
		UserID:          nc.UserID,
		CommentableType: nc.CommentableType,
		CommentableID:   nc.CommentableID,
		Body:            nc.Body,
		CreatedAt:       time.Now(),
	}
	r.s.st.comments[c.ID] = c
	return &c, nil
}

func (r *ContentRepository) GetQuestionDetails(ctx context.Context, id, viewerID int64) (*domain.QuestionDetails, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ContentRepository.GetQuestionDetails"); err != nil {
		return nil, err
	}
	st := r.s.st
	q, ok := st.questions[id]
	if !ok {
		return nil, nil
	}
	q.Views++
	st.questions[id] = q

	d := &domain.QuestionDetails{
		ID:        q.ID,
		UserID:    q.UserID,
		Username:  st.users[q.UserID].Username,
		Title:     q.Title,
		Body:      q.Body,
		Views:     q.Views,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
		Tags:      slices.Clone(st.questionTags[q.ID]),
		VoteCount: st.score(domain.VotableQuestion, q.ID),
		UserVote:  st.userVote(viewerID, domain.VotableQuestion, q.ID),
		Comments:  st.commentsOn(domain.VotableQuestion, q.ID),
		Answers:   []domain.AnswerView{},
	}
	if d.Tags == nil {
		d.Tags = []domain.Tag{}
	}
	for _, a := range st.answers {
		if a.QuestionID != q.ID {
			continue
		}
		d.Answers = append(d.Answers, domain.AnswerView{
			ID:         a.ID,
			UserID:     a.UserID,
			Username:   st.users[a.UserID].Username,
			Body:       a.Body,
			IsAccepted: a.IsAccepted,
			CreatedAt:  a.CreatedAt,
			UpdatedAt:  a.UpdatedAt,
			VoteCount:  st.score(domain.VotableAnswer, a.ID),
			UserVote:   st.userVote(viewerID, domain.VotableAnswer, a.ID),
			Comments:   st.commentsOn(domain.VotableAnswer, a.ID),
		})
	}
	sort.Slice(d.Answers, func(i, j int) bool {
		a, b := d.Answers[i], d.Answers[j]
		if a.IsAccepted != b.IsAccepted {
			return a.IsAccepted
		}
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return a.ID < b.ID
	})
	return d, nil
}

func (r *ContentRepository) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ContentRepository.GetComment"); err != nil {
		return nil, err
	}
	c, ok := r.s.st.comments[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *state) userVote(viewerID int64, votableType domain.VotableType, votableID int64) *domain.VoteType {
	if viewerID == 0 {
		return nil
	}
	for _, v := range s.votes {
		if v.UserID == viewerID && v.VotableType == votableType && v.VotableID == votableID {
			vt := v.VoteType
			return &vt
		}
	}
	return nil
}

// commentsOn returns the comments on one question or answer, oldest first.
func (s *state) commentsOn(commentableType domain.VotableType, id int64) []domain.CommentView {
	out := []domain.CommentView{}
	for _, c := range s.comments {
		if c.CommentableType != commentableType || c.CommentableID != id {
			continue
		}
		out = append(out, domain.CommentView{
			ID:              c.ID,
			UserID:          c.UserID,
			Username:        s.users[c.UserID].Username,
			CommentableType: c.CommentableType,
			CommentableID:   c.CommentableID,
			Body:            c.Body,
			CreatedAt:       c.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListQuestions filters by case-insensitive substring and tags, newest first.
func (r *ContentRepository) ListQuestions(ctx context.Context, lq domain.QuestionQuery, viewerID int64) (*domain.QuestionPage, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ContentRepository.ListQuestions"); err != nil {
		return nil, err
	}
	st := r.s.st

	var wantTags []string
	for _, t := range strings.Split(lq.Tags, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			wantTags = append(wantTags, t)
		}
	}
	needle := strings.ToLower(lq.Q)

	var matched []domain.Question
	for _, q := range st.questions {
		if needle != "" && !strings.Contains(strings.ToLower(q.Title+" "+q.Body), needle) {
			continue
		}
		if len(wantTags) > 0 && !slices.ContainsFunc(st.questionTags[q.ID], func(t domain.Tag) bool {
			return slices.Contains(wantTags, t.Name)
		}) {
			continue
		}
		matched = append(matched, q)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page := &domain.QuestionPage{
		Questions:  []domain.QuestionSummary{},
		Total:      len(matched),
		Page:       lq.Page,
		TotalPages: (len(matched) + lq.Limit - 1) / lq.Limit,
	}

	start := min((lq.Page-1)*lq.Limit, len(matched))
	end := min(start+lq.Limit, len(matched))
	for _, q := range matched[start:end] {
		s := domain.QuestionSummary{
			ID:        q.ID,
			Title:     q.Title,
			Body:      q.Body,
			Views:     q.Views,
			CreatedAt: q.CreatedAt,
			UpdatedAt: q.UpdatedAt,
			Username:  st.users[q.UserID].Username,
			Tags:      slices.Clone(st.questionTags[q.ID]),
			VoteCount: st.score(domain.VotableQuestion, q.ID),
		}
		if s.Tags == nil {
			s.Tags = []domain.Tag{}
		}
		s.AnswerCount = st.answerCount(q.ID)
		s.UserVote = st.userVote(viewerID, domain.VotableQuestion, q.ID)
		page.Questions = append(page.Questions, s)
	}
	return page, nil
}

// ProfileRepository implements domain.ProfileRepository.
type ProfileRepository struct{ s *Store }

func (r *ProfileRepository) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ProfileRepository.GetProfile"); err != nil {
		return nil, err
	}
	st := r.s.st
	u, ok := st.users[userID]
	if !ok {
		return nil, nil
	}
	p := st.profile(u)
	p.RecentQuestions = []domain.ProfileQuestion{}
	p.RecentAnswers = []domain.ProfileAnswer{}

	var questions []domain.Question
	for _, q := range st.questions {
		if q.UserID == userID {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID > questions[j].ID })
	for _, q := range questions[:min(len(questions), domain.RecentActivityLimit)] {
		p.RecentQuestions = append(p.RecentQuestions, domain.ProfileQuestion{
			ID:          q.ID,
			Title:       q.Title,
			CreatedAt:   q.CreatedAt,
			VoteCount:   st.score(domain.VotableQuestion, q.ID),
			AnswerCount: st.answerCount(q.ID),
		})
	}

	var answers []domain.Answer
	for _, a := range st.answers {
		if a.UserID == userID {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID > answers[j].ID })
	for _, a := range answers[:min(len(answers), domain.RecentActivityLimit)] {
		p.RecentAnswers = append(p.RecentAnswers, domain.ProfileAnswer{
			ID:            a.ID,
			Body:          a.Body,
			IsAccepted:    a.IsAccepted,
			CreatedAt:     a.CreatedAt,
			QuestionID:    a.QuestionID,
			QuestionTitle: st.questions[a.QuestionID].Title,
			VoteCount:     st.score(domain.VotableAnswer, a.ID),
		})
	}
	return &p, nil
}

func (r *ProfileRepository) TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("ProfileRepository.TopUsers"); err != nil {
		return nil, err
	}
	st := r.s.st
	users := slices.Collect(maps.Values(st.users))
	sort.Slice(users, func(i, j int) bool {
		if users[i].Reputation != users[j].Reputation {
			return users[i].Reputation > users[j].Reputation
		}
		return users[i].ID < users[j].ID
	})
	out := make([]domain.UserProfile, 0, min(len(users), limit))
	for _, u := range users[:min(len(users), limit)] {
		out = append(out, st.profile(u))
	}
	return out, nil
}

// SetReputation overwrites a user's reputation. Reputation scoring is owned
// elsewhere; tests use this to order profiles.
func (r *ProfileRepository) SetReputation(ctx context.Context, userID int64, reputation int) {
	defer r.s.lock(ctx)()
	if u, ok := r.s.st.users[userID]; ok {
		u.Reputation = reputation
		r.s.st.users[userID] = u
	}
}

func (s *state) profile(u domain.UserRow) domain.UserProfile {
	p := domain.UserProfile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Reputation: u.Reputation,
		CreatedAt:  u.CreatedAt,
	}
	for _, q := range s.questions {
		if q.UserID == u.ID {
			p.QuestionCount++
		}
	}
	for _, a := range s.answers {
		if a.UserID == u.ID {
			p.AnswerCount++
		}
	}
	return p
}

func (s *state) answerCount(questionID int64) int {
	n := 0
	for _, a := range s.answers {
		if a.QuestionID == questionID {
			n++
		}
	}
	return n
}
