package sql

import (
	"fmt"
	"testing"

	"github.com/syssam/graft/dialect"
)

var benchDialects = []string{dialect.SQLite, dialect.MySQL, dialect.Postgres}

func BenchmarkInsert(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				Dialect(d).Insert("posts").
					Columns("title", "author_id", "created_at").
					Values("hello", 1, "2024-01-02 03:04:05").
					Returning("id").
					Query()
			}
		})
	}
}

func BenchmarkUpdateVersioned(b *testing.B) {
	for _, d := range benchDialects {
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				Dialect(d).Update("users").
					Set("name", "a8m").
					Set("version", 2).
					Where(EQ("id", 1)).
					Query()
			}
		})
	}
}

// BenchmarkLoadChunk measures the select of one loader chunk.
func BenchmarkLoadChunk(b *testing.B) {
	for _, size := range []int{50, 500} {
		single := make([]map[string]any, size)
		composite := make([]map[string]any, size)
		for i := range size {
			single[i] = map[string]any{"id": i}
			composite[i] = map[string]any{"user_id": i, "team_id": i + 1}
		}
		b.Run(fmt.Sprintf("single/%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				Dialect(dialect.Postgres).Select("id", "name").From("users").Where(Keys(single)).Query()
			}
		})
		b.Run(fmt.Sprintf("composite/%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				Dialect(dialect.SQLite).Select("user_id", "team_id").From("user_teams").Where(Keys(composite)).Query()
			}
		})
	}
}

func BenchmarkKindOf(b *testing.B) {
	for b.Loop() {
		KindOf(`  UPDATE "users" SET "name" = $1 WHERE "id" = $2`)
	}
}
