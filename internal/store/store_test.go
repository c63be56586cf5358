package store

import "testing"

func TestConfigDSNUsesSocketWhenSet(t *testing.T) {
	cfg := Config{User: "u", Password: "p", SockDir: "/var/run/mysqld/mysqld.sock", Database: "d"}
	dsn := cfg.dsn()
	want := "u:p@unix(/var/run/mysqld/mysqld.sock)/d?parseTime=true"
	if dsn != want {
		t.Fatalf("got %q, want %q", dsn, want)
	}
}

func TestConfigDSNUsesTCPWhenNoSocket(t *testing.T) {
	cfg := Config{User: "u", Password: "p", Host: "db.internal", Port: 3306, Database: "d"}
	dsn := cfg.dsn()
	want := "u:p@tcp(db.internal:3306)/d?parseTime=true"
	if dsn != want {
		t.Fatalf("got %q, want %q", dsn, want)
	}
}

// TestConfigPasswordAndSockDirAreDistinctFields fixes spec.md §9.5's
// documented CLI flag collision: setting Password must never clobber
// SockDir or vice versa.
func TestConfigPasswordAndSockDirAreDistinctFields(t *testing.T) {
	cfg := Config{Password: "secret", SockDir: "/tmp/mysql.sock"}
	if cfg.Password == cfg.SockDir {
		t.Fatal("password and sockdir must not collide")
	}
	cfg.Password = "changed"
	if cfg.SockDir != "/tmp/mysql.sock" {
		t.Fatal("changing password must not affect sockdir")
	}
}
