package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"testing"
)

// --- 記録用スタブドライバ ---
// DeleteIfUnreferencedのトランザクション内で発行されるSQLと引数を検証するため、
// 実行されたクエリを記録する最小限のdatabase/sqlドライバを用意する。

type recordedQuery struct {
	query string
	args  []driver.Value
}

type stubConn struct {
	queries []recordedQuery
	rowsFor func(query string) [][]driver.Value
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(name string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

func (c *stubConn) findQuery(substr string) *recordedQuery {
	for i := range c.queries {
		if strings.Contains(c.queries[i].query, substr) {
			return &c.queries[i]
		}
	}
	return nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.conn.queries = append(s.conn.queries, recordedQuery{query: s.query, args: args})
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.conn.queries = append(s.conn.queries, recordedQuery{query: s.query, args: args})
	return &stubRows{rows: s.conn.rowsFor(s.query)}, nil
}

type stubRows struct {
	rows [][]driver.Value
	pos  int
}

func (r *stubRows) Columns() []string {
	if len(r.rows) == 0 {
		return nil
	}
	cols := make([]string, len(r.rows[0]))
	for i := range cols {
		cols[i] = "c"
	}
	return cols
}

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func newStubRepoDB(t *testing.T, name string, rowsFor func(query string) [][]driver.Value) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{rowsFor: rowsFor}
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open stub db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, conn
}

// --- テスト ---

// TestDeleteIfUnreferenced_DependentCountScopedToOwner は依存ブックマーク数の
// カウントが所有者のuser_idで絞り込まれることを検証する。
func TestDeleteIfUnreferenced_DependentCountScopedToOwner(t *testing.T) {
	db, conn := newStubRepoDB(t, "genre-repo-stub-count", func(query string) [][]driver.Value {
		if strings.Contains(query, "FOR UPDATE") {
			return [][]driver.Value{{"genre-1"}}
		}
		if strings.Contains(query, "COUNT") {
			return [][]driver.Value{{int64(3)}}
		}
		return nil
	})
	repo := NewPostgresGenreRepository(db)

	found, dependents, err := repo.DeleteIfUnreferenced(context.Background(), "user-1", "genre-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || dependents != 3 {
		t.Errorf("found=%v dependents=%d, want found=true dependents=3", found, dependents)
	}

	countQuery := conn.findQuery("COUNT")
	if countQuery == nil {
		t.Fatal("dependent count query was not executed")
	}
	if !strings.Contains(countQuery.query, "user_id") {
		t.Errorf("dependent count query missing user_id predicate: %s", countQuery.query)
	}
	if len(countQuery.args) != 2 || countQuery.args[0] != "genre-1" || countQuery.args[1] != "user-1" {
		t.Errorf("dependent count args = %v, want [genre-1 user-1]", countQuery.args)
	}

	// 依存が存在する場合はDELETEまで到達しないこと
	if del := conn.findQuery("DELETE"); del != nil {
		t.Errorf("DELETE should not run while dependents exist: %s", del.query)
	}
}

// TestDeleteIfUnreferenced_DeletesWhenNoDependents は依存ゼロのジャンルが
// 削除されることを検証する。
func TestDeleteIfUnreferenced_DeletesWhenNoDependents(t *testing.T) {
	db, conn := newStubRepoDB(t, "genre-repo-stub-delete", func(query string) [][]driver.Value {
		if strings.Contains(query, "FOR UPDATE") {
			return [][]driver.Value{{"genre-1"}}
		}
		if strings.Contains(query, "COUNT") {
			return [][]driver.Value{{int64(0)}}
		}
		return nil
	})
	repo := NewPostgresGenreRepository(db)

	found, dependents, err := repo.DeleteIfUnreferenced(context.Background(), "user-1", "genre-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || dependents != 0 {
		t.Errorf("found=%v dependents=%d, want found=true dependents=0", found, dependents)
	}
	if conn.findQuery("DELETE") == nil {
		t.Error("DELETE query was not executed")
	}
}
