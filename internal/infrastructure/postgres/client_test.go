package postgres

import (
	"testing"
	"time"
)

func TestPoolConfigFor(t *testing.T) {
	cfg := DefaultClientConfig("postgres://u:p@localhost:5432/db?sslmode=disable", "fileonline-worker")
	cfg.StatementTimeout = 1500 * time.Millisecond

	pc, err := poolConfigFor(cfg)
	if err != nil {
		t.Fatalf("poolConfigFor() error = %v", err)
	}
	if pc.MaxConns != 10 || pc.MinConns != 2 {
		t.Errorf("pool size = %d/%d, want 2/10", pc.MinConns, pc.MaxConns)
	}
	params := pc.ConnConfig.RuntimeParams
	if params["application_name"] != "fileonline-worker" {
		t.Errorf("application_name = %q", params["application_name"])
	}
	if params["statement_timeout"] != "1500" {
		t.Errorf("statement_timeout = %q, want 1500", params["statement_timeout"])
	}
}

func TestPoolConfigFor_ZeroValuesLeaveServerDefaults(t *testing.T) {
	pc, err := poolConfigFor(ClientConfig{DSN: "postgres://u:p@localhost:5432/db"})
	if err != nil {
		t.Fatalf("poolConfigFor() error = %v", err)
	}
	if _, ok := pc.ConnConfig.RuntimeParams["statement_timeout"]; ok {
		t.Error("statement_timeout set for zero StatementTimeout")
	}
}

func TestPoolConfigFor_BadDSN(t *testing.T) {
	if _, err := poolConfigFor(ClientConfig{DSN: "postgres://%zz"}); err == nil {
		t.Error("expected parse error")
	}
}
