package mongo

import "testing"

func TestMigrationsFollowCollection(t *testing.T) {
	s := &Store{col: "history"}
	g := s.Migrations()
	if g.Name() != "jobrun" {
		t.Errorf("group name = %q", g.Name())
	}
	ms := g.Migrations()
	if len(ms) != 1 {
		t.Fatalf("got %d migrations, want 1", len(ms))
	}
	if ms[0].Name != "create_history_indexes" {
		t.Errorf("migration name = %q", ms[0].Name)
	}
	if ms[0].Up == nil || ms[0].Down == nil {
		t.Error("migration must define Up and Down")
	}
}
