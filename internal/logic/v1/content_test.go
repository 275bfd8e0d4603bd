package v1

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/duynhne/qa-service/internal/core/cache"
	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/internal/core/repository/memory"
)

func TestListingCacheKey(t *testing.T) {
	a := ListingCacheKey("g1", domain.QuestionQuery{Q: "goroutines", Tags: "Go, runtime", Page: 1, Limit: 20}, 0)
	b := ListingCacheKey("g1", domain.QuestionQuery{Q: " goroutines ", Tags: "runtime,go,GO", Page: 1, Limit: 20}, 0)
	if a != b {
		t.Fatalf("equivalent queries must share a key:\n%s\n%s", a, b)
	}
	if !strings.HasPrefix(a, "questions:g1:") {
		t.Fatalf("key must live in the listing namespace under its generation: %s", a)
	}
	if viewer := ListingCacheKey("g1", domain.QuestionQuery{Q: "goroutines", Tags: "go,runtime", Page: 1, Limit: 20}, 7); viewer == a {
		t.Fatal("viewer-specific listings must not share the anonymous key")
	}
	if page2 := ListingCacheKey("g1", domain.QuestionQuery{Q: "goroutines", Tags: "go,runtime", Page: 2, Limit: 20}, 0); page2 == a {
		t.Fatal("pages must not share a key")
	}
	if next := ListingCacheKey("g2", domain.QuestionQuery{Q: "goroutines", Tags: "go,runtime", Page: 1, Limit: 20}, 0); next == a {
		t.Fatal("generations must not share a key")
	}
}

func TestNormalizeQuery(t *testing.T) {
	got := normalizeQuery(domain.QuestionQuery{Tags: " B,a ,,b", Page: 0, Limit: 500})
	if got.Tags != "a,b" || got.Page != 1 || got.Limit != maxPageLimit {
		t.Fatalf("unexpected normalization %+v", got)
	}
	if got := normalizeQuery(domain.QuestionQuery{}); got.Limit != defaultPageLimit {
		t.Fatalf("want default limit, got %d", got.Limit)
	}
}

func TestListQuestionsServesFromCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.register(t, "author")
	e.question(t, author)

	first, err := e.content.ListQuestions(ctx, 0, domain.QuestionQuery{})
	if err != nil || first.Total != 1 {
		t.Fatalf("want one question, got %+v, %v", first, err)
	}

	// Written behind the service's back: no invalidation happens.
	if _, err := e.store.Content().CreateQuestion(ctx, domain.NewQuestion{UserID: author.ID, Title: "Direct write", Body: "...", Tags: []string{"go"}}); err != nil {
		t.Fatal(err)
	}
	cached, _ := e.content.ListQuestions(ctx, 0, domain.QuestionQuery{})
	if cached.Total != 1 {
		t.Fatalf("second read must come from the cache, got total %d", cached.Total)
	}

	if _, err := e.content.CreateAnswer(ctx, author.ID, domain.CreateAnswerRequest{QuestionID: first.Questions[0].ID, Body: "An answer long enough to pass."}); err != nil {
		t.Fatal(err)
	}
	fresh, _ := e.content.ListQuestions(ctx, 0, domain.QuestionQuery{})
	if fresh.Total != 2 {
		t.Fatalf("read after an invalidating write must be fresh, got total %d", fresh.Total)
	}
}

func TestMutationsNeverServeStaleListing(t *testing.T) {
	stale := domain.QuestionPage{Total: -1}

	mutations := map[string]func(t *testing.T, e *env, author, other domain.User, q *domain.Question){
		"question created": func(t *testing.T, e *env, author, _ domain.User, _ *domain.Question) {
			e.question(t, author)
		},
		"answer created": func(t *testing.T, e *env, _, other domain.User, q *domain.Question) {
			if _, err := e.content.CreateAnswer(context.Background(), other.ID, domain.CreateAnswerRequest{QuestionID: q.ID, Body: "Here is a detailed answer."}); err != nil {
				t.Fatal(err)
			}
		},
		"comment created": func(t *testing.T, e *env, _, other domain.User, q *domain.Question) {
			if _, err := e.content.CreateComment(context.Background(), other.ID, domain.CreateCommentRequest{CommentableType: domain.VotableQuestion, CommentableID: q.ID, Body: "Nice question"}); err != nil {
				t.Fatal(err)
			}
		},
		"vote cast": func(t *testing.T, e *env, _, other domain.User, q *domain.Question) {
			if _, err := e.votes.CastVote(context.Background(), other.ID, domain.VotableQuestion, q.ID, domain.Downvote); err != nil {
				t.Fatal(err)
			}
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv(t)
			author := e.register(t, "author")
			other := e.register(t, "other")
			q := e.question(t, author)

			gen := e.policy.ListingGeneration(ctx)
			keys := []string{
				ListingCacheKey(gen, normalizeQuery(domain.QuestionQuery{}), 0),
				ListingCacheKey(gen, normalizeQuery(domain.QuestionQuery{Tags: "go", Page: 3}), other.ID),
			}
			for _, key := range keys {
				e.cache.Set(ctx, key, stale, time.Hour)
			}

			mutate(t, e, author, other, q)

			if e.policy.ListingGeneration(ctx) == gen {
				t.Fatal("mutation must start a new listing generation")
			}
			for _, key := range keys {
				var got domain.QuestionPage
				if e.cache.Get(ctx, key, &got) && got.Total == stale.Total {
					t.Fatalf("%s still served after mutation", key)
				}
			}
			page, err := e.content.ListQuestions(ctx, 0, domain.QuestionQuery{})
			if err != nil || page.Total < 1 {
				t.Fatalf("listing must be recomputed, got %+v, %v", page, err)
			}
		})
	}
}

func TestLateRepopulationAfterVoteIsNeverServed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.register(t, "author")
	voter := e.register(t, "voter")
	q := e.question(t, author)
	query := normalizeQuery(domain.QuestionQuery{})

	// A listing read takes the generation and loads the page before the vote.
	gen := e.policy.ListingGeneration(ctx)
	before, err := e.store.Content().ListQuestions(ctx, query, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.votes.CastVote(ctx, voter.ID, domain.VotableQuestion, q.ID, domain.Upvote); err != nil {
		t.Fatal(err)
	}

	// It stores its now stale page after the vote's invalidation ran.
	e.cache.Set(ctx, ListingCacheKey(gen, query, 0), before, time.Hour)

	page, err := e.content.ListQuestions(ctx, 0, domain.QuestionQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Questions[0].VoteCount != 1 {
		t.Fatalf("stale page served after the vote: vote_count %d", page.Questions[0].VoteCount)
	}
}

func TestFailedWriteDoesNotInvalidate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.register(t, "author")
	key := ListingCacheKey(e.policy.ListingGeneration(ctx), normalizeQuery(domain.QuestionQuery{}), 0)
	e.cache.Set(ctx, key, domain.QuestionPage{Total: 5}, time.Hour)

	if _, err := e.content.CreateAnswer(ctx, author.ID, domain.CreateAnswerRequest{QuestionID: 404, Body: "Answer to nothing at all."}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	var got domain.QuestionPage
	if !e.cache.Get(ctx, key, &got) || got.Total != 5 {
		t.Fatal("a rolled back write must leave the cache alone")
	}
	if page, _ := e.content.ListQuestions(ctx, 0, domain.QuestionQuery{}); page.Total != 5 {
		t.Fatalf("the cached listing must still be served, got total %d", page.Total)
	}
}

func TestCreateCommentErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	user := e.register(t, "user")

	if _, err := e.content.CreateComment(ctx, user.ID, domain.CreateCommentRequest{CommentableType: domain.VotableAnswer, CommentableID: 9, Body: "hello"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing answer: want ErrNotFound, got %v", err)
	}
	if _, err := e.content.CreateComment(ctx, user.ID, domain.CreateCommentRequest{CommentableType: "user", CommentableID: 1, Body: "hello"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad type: want ErrInvalidInput, got %v", err)
	}
}

func TestCreateQuestionRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.register(t, "author")

	e.store.FailNext("ContentRepository.CreateQuestion", domain.ErrStoreUnavailable)
	_, err := e.content.CreateQuestion(ctx, author.ID, domain.CreateQuestionRequest{Title: "A title here", Body: "body body body body", Tags: []string{"go"}})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
	if _, err := e.content.CreateQuestion(ctx, author.ID, domain.CreateQuestionRequest{Title: "A title here", Body: "body", Tags: []string{" ", ""}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank tags: want ErrInvalidInput, got %v", err)
	}
}

func TestServiceWorksWithoutReachableCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	e := newEnvWithCache(t, memory.New(), nil, cache.New(cache.NewRedisBackend(client), 100*time.Millisecond))
	author := e.register(t, "author")
	voter := e.register(t, "voter")
	q := e.question(t, author)

	if _, err := e.votes.CastVote(ctx, voter.ID, domain.VotableQuestion, q.ID, domain.Upvote); err != nil {
		t.Fatalf("vote must succeed without cache: %s", err)
	}
	page, err := e.content.ListQuestions(ctx, voter.ID, domain.QuestionQuery{})
	if err != nil {
		t.Fatalf("listing must succeed without cache: %s", err)
	}
	if page.Total != 1 || page.Questions[0].VoteCount != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestGetQuestion(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.register(t, "author")
	voter := e.register(t, "voter")
	q := e.question(t, author)

	answer, err := e.content.CreateAnswer(ctx, voter.ID, domain.CreateAnswerRequest{QuestionID: q.ID, Body: "Goroutines are multiplexed onto threads."})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.content.CreateComment(ctx, author.ID, domain.CreateCommentRequest{CommentableType: domain.VotableAnswer, CommentableID: answer.ID, Body: "Thanks!"}); err != nil {
		t.Fatal(err)
	}

	d, err := e.content.GetQuestion(ctx, voter.ID, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.Views != 1 || d.VoteCount != 0 || d.UserVote != nil {
		t.Fatalf("unexpected details %+v", d)
	}
	if len(d.Answers) != 1 || len(d.Answers[0].Comments) != 1 {
		t.Fatalf("answer with its comment expected, got %+v", d.Answers)
	}

	if _, err := e.votes.CastVote(ctx, voter.ID, domain.VotableQuestion, q.ID, domain.Upvote); err != nil {
		t.Fatal(err)
	}
	d, _ = e.content.GetQuestion(ctx, voter.ID, q.ID)
	if d.Views != 2 || d.VoteCount != 1 || d.UserVote == nil || *d.UserVote != domain.Upvote {
		t.Fatalf("details must reflect the vote at once, got %+v", d)
	}

	if _, err := e.content.GetQuestion(ctx, 0, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	e.store.FailNext("ContentRepository.GetQuestionDetails", domain.ErrStoreUnavailable)
	if _, err := e.content.GetQuestion(ctx, 0, q.ID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}

func TestGetComment(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	author := e.register(t, "author")
	q := e.question(t, author)

	c, err := e.content.CreateComment(ctx, author.ID, domain.CreateCommentRequest{CommentableType: domain.VotableQuestion, CommentableID: q.ID, Body: "Edit: clarified"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.content.GetComment(ctx, c.ID)
	if err != nil || got.Body != "Edit: clarified" {
		t.Fatalf("want stored comment, got %+v, %v", got, err)
	}
	if _, err := e.content.GetComment(ctx, c.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
