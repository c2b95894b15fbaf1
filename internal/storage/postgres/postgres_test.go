package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestConnStringDefaults(t *testing.T) {
	got := Config{}.ConnString()
	want := "host=127.0.0.1 port=5432 user=sentient dbname=sentient_studio sslmode=disable"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestConnStringWithPassword(t *testing.T) {
	got := Config{Host: "db", Password: "s3cret", SSLMode: "require"}.ConnString()
	if !strings.Contains(got, "host=db") || !strings.Contains(got, "password=s3cret") || !strings.Contains(got, "sslmode=require") {
		t.Errorf("unexpected connection string: %q", got)
	}
}

// TestDocumentRoundTrip runs against a live database when PGTEST_HOST is set.
func TestDocumentRoundTrip(t *testing.T) {
	host := os.Getenv("PGTEST_HOST")
	if host == "" {
		t.Skip("PGTEST_HOST not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := New(ctx, Config{Host: host, Password: os.Getenv("PGTEST_PASSWORD")}, "test-studio")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := c.PutDocument(ctx, "scenario", "doc-1", "p1", []byte(`{"name":"a"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	body, err := c.GetDocument(ctx, "scenario", "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(string(body), `"a"`) {
		t.Errorf("unexpected body %s", body)
	}

	if err := c.DeleteDocument(ctx, "scenario", "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetDocument(ctx, "scenario", "doc-1"); err != ErrNoDocument {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}
