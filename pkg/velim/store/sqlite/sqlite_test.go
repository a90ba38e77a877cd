package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cognicore/velim/pkg/velim/store"
	"github.com/cognicore/velim/pkg/velim/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "velim.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		t.Cleanup(func() { st.Close() })
		return st
	})
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "velim.db")

	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := st.UpsertNetwork(ctx, store.NetworkMeta{Name: "alarm", Format: "bif", Source: "network alarm {}", Variables: 6}); err != nil {
		t.Fatalf("UpsertNetwork: %v", err)
	}
	if err := st.SaveQuery(ctx, store.QueryRecord{ID: "01J", Network: "alarm", Engine: "ve", Query: []string{"Fire"}}); err != nil {
		t.Fatalf("SaveQuery: %v", err)
	}
	st.Close()

	st, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, err := st.ListQueries(ctx, "alarm", 10)
	if err != nil {
		t.Fatalf("ListQueries: %v", err)
	}
	if len(got) != 1 || got[0].ID != "01J" {
		t.Fatalf("history after reopen = %+v", got)
	}
	if len(got[0].Evidence) != 0 || got[0].Outcomes == nil {
		t.Errorf("empty columns not decoded as empty values: %+v", got[0])
	}
}
