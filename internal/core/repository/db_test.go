package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/duynhne/qa-service/internal/core/domain"
)

func TestMapErr(t *testing.T) {
	other := errors.New("boom")

	cases := map[string]struct {
		in   error
		want error
	}{
		"nil": {in: nil, want: nil},
		"unique violation": {
			in:   fmt.Errorf("insert vote: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "votes_user_id_votable_type_votable_id_key"}),
			want: domain.ErrConflict,
		},
		"deadline": {
			in:   fmt.Errorf("query: %w", context.DeadlineExceeded),
			want: domain.ErrStoreUnavailable,
		},
		"other pg error": {
			in:   &pgconn.PgError{Code: "23503"},
			want: nil,
		},
		"plain": {in: other, want: other},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := mapErr(tc.in)
			switch {
			case tc.in == nil:
				if got != nil {
					t.Fatalf("want nil, got %v", got)
				}
			case tc.want == nil:
				if errors.Is(got, domain.ErrConflict) || errors.Is(got, domain.ErrStoreUnavailable) {
					t.Fatalf("unexpected translation: %v", got)
				}
			default:
				if !errors.Is(got, tc.want) {
					t.Fatalf("want %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestSplitTags(t *testing.T) {
	got := splitTags(" Go, ,postgres ,REDIS")
	want := []string{"go", "postgres", "redis"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	if got := splitTags(""); got != nil {
		t.Fatalf("empty filter must yield no tags, got %v", got)
	}
}
