package s3

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"applicantsync/pkg/domain"
)

var schema = domain.Schema{Columns: []string{"id", "name", "time"}, KeyColumn: "id"}

func TestMissingObjectReadsAsEmptyTable(t *testing.T) {
	g, _ := newMock(schema)
	ctx := context.Background()
	table, err := g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(table.Rows) != 0 || strings.Join(table.Header, ",") != "id,name,time" {
		t.Fatalf("unexpected table: %+v", table)
	}
	hash, err := g.FetchStateHash(ctx)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash != domain.HashTable(table) {
		t.Fatalf("missing object should hash as the empty table")
	}
}

func TestSaveWritesCSVObject(t *testing.T) {
	g, rt := newMock(schema)
	ctx := context.Background()
	if err := g.Save(ctx, domain.Fields{"name": "Kim, J.", "time": "'09:30"}, false, "1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := g.Save(ctx, domain.Fields{"name": "Lee"}, false, "2"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	obj, ok := rt.object(DefaultKey)
	if !ok {
		t.Fatalf("expected object to be written")
	}
	want := "id,name,time\n1,\"Kim, J.\",'09:30\n2,Lee,\n"
	if string(obj.body) != want {
		t.Fatalf("unexpected csv:\n%q\nwant\n%q", obj.body, want)
	}
	if obj.contentType != "text/csv" {
		t.Fatalf("unexpected content type %q", obj.contentType)
	}

	table, err := g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[0][1] != "Kim, J." || table.Rows[0][2] != "'09:30" {
		t.Fatalf("unexpected rows: %+v", table.Rows)
	}
}

func TestUpdateDeleteAndErrors(t *testing.T) {
	g, rt := newMock(schema)
	ctx := context.Background()
	if err := g.Save(ctx, domain.Fields{"name": "Kim"}, false, "1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	first, _ := g.FetchStateHash(ctx)
	if err := g.Save(ctx, domain.Fields{"name": "dup"}, false, "1"); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := g.Save(ctx, domain.Fields{"name": "x"}, true, "5"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := g.Save(ctx, domain.Fields{"name": "Kim Lee"}, true, "1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	second, _ := g.FetchStateHash(ctx)
	if first == second {
		t.Fatalf("expected ETag to change after update")
	}

	puts := rt.putCount()
	if err := g.Delete(ctx, "42"); err != nil {
		t.Fatalf("absent delete: %v", err)
	}
	if rt.putCount() != puts {
		t.Fatalf("absent delete must not rewrite the object")
	}
	if err := g.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if table, _ := g.FetchAll(ctx); len(table.Rows) != 0 {
		t.Fatalf("expected empty table after delete, got %+v", table.Rows)
	}

	rt.fail(http.MethodPut, http.StatusForbidden)
	if err := g.Save(ctx, domain.Fields{"name": "x"}, false, "2"); err == nil || !strings.Contains(err.Error(), "put registry.csv") {
		t.Fatalf("expected put failure, got %v", err)
	}
	rt.fail(http.MethodHead, http.StatusForbidden)
	if _, err := g.FetchStateHash(ctx); err == nil {
		t.Fatalf("expected head failure")
	}
}

func TestLoadProjectsForeignHeader(t *testing.T) {
	g, rt := newMock(schema)
	rt.state[DefaultKey] = mockObj{body: []byte("name,extra,id\nKim,zzz,7\n"), etag: `"x"`}
	table, err := g.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(table.Rows) != 1 || strings.Join(table.Rows[0], "|") != "7|Kim|" {
		t.Fatalf("unexpected projection: %+v", table.Rows)
	}

	rt.state[DefaultKey] = mockObj{body: []byte("name\nKim\n"), etag: `"y"`}
	if _, err := g.FetchAll(context.Background()); err == nil {
		t.Fatalf("expected error for object without key column")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}, schema); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestDecodeChunkedLite(t *testing.T) {
	body, ok := decodeChunkedLite([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("unexpected decode %q %v", body, ok)
	}
	if _, ok := decodeChunkedLite([]byte("id,name\n1,a\n")); ok {
		t.Fatalf("plain csv must not decode as chunked")
	}
}
