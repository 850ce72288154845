package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/keeldb/keel/internal/config"
	"github.com/keeldb/keel/internal/jsonval"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
	"github.com/keeldb/keel/internal/store"
)

func openTestRuntime(t *testing.T, dir string, cfg cfgpkg.Config) *Runtime {
	t.Helper()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestOpenCloseHealth(t *testing.T) {
	rt := openTestRuntime(t, t.TempDir(), cfgpkg.Default())
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestStoreResolvesAndCaches(t *testing.T) {
	rt := openTestRuntime(t, t.TempDir(), cfgpkg.Default())

	first, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	second, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("re-store: %v", err)
	}
	if first != second {
		t.Fatal("expected cached instance on second resolve")
	}

	def, err := rt.Store("")
	if err != nil {
		t.Fatalf("default store: %v", err)
	}
	if def.Tenant() != "default" {
		t.Fatalf("empty name resolved to %q", def.Tenant())
	}
}

func TestStoreValidatesName(t *testing.T) {
	rt := openTestRuntime(t, t.TempDir(), cfgpkg.Default())
	if _, err := rt.Store("bad name!"); err == nil {
		t.Fatal("invalid tenant name accepted")
	}
}

func TestAutoCreateDisabled(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.AllowAutoCreate = false
	rt := openTestRuntime(t, t.TempDir(), cfg)

	if _, err := rt.Store("newco"); err == nil {
		t.Fatal("unknown tenant accepted with auto-create disabled")
	}

	// The default tenant is always available.
	if _, err := rt.Store(""); err != nil {
		t.Fatalf("default store: %v", err)
	}

	// Explicitly-created tenants resolve.
	if _, err := rt.EnsureTenant("newco"); err != nil {
		t.Fatalf("ensure tenant: %v", err)
	}
	if _, err := rt.Store("newco"); err != nil {
		t.Fatalf("store after ensure: %v", err)
	}
}

func TestEvictClosesResidentStore(t *testing.T) {
	rt := openTestRuntime(t, t.TempDir(), cfgpkg.Default())

	first, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	rt.Evict("acme")
	if first.State() != store.StateClosed {
		t.Fatalf("evicted store state = %v", first.State())
	}

	second, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("re-store: %v", err)
	}
	if second == first {
		t.Fatal("evicted instance returned again")
	}

	// Evicting a non-resident tenant is a no-op.
	rt.Evict("ghost")
}

func TestTenantsLists(t *testing.T) {
	rt := openTestRuntime(t, t.TempDir(), cfgpkg.Default())
	for _, name := range []string{"zeta", "acme"} {
		if _, err := rt.Store(name); err != nil {
			t.Fatalf("store %s: %v", name, err)
		}
	}
	metas, err := rt.Tenants()
	if err != nil {
		t.Fatalf("tenants: %v", err)
	}
	if len(metas) != 2 || metas[0].Name != "acme" || metas[1].Name != "zeta" {
		t.Fatalf("tenants = %+v", metas)
	}
}

func TestCloseCheckpointsStores(t *testing.T) {
	dir := t.TempDir()
	rt := openTestRuntime(t, dir, cfgpkg.Default())

	s, err := rt.Store("acme")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	fields := jsonval.NewObject()
	fields.Set("name", jsonval.String("Ada"))
	doc, err := s.Create(context.Background(), "contact", fields, store.Actor{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestRuntime(t, dir, cfgpkg.Default())
	s2, err := reopened.Store("acme")
	if err != nil {
		t.Fatalf("store after reopen: %v", err)
	}
	got, err := s2.Get(context.Background(), "contact", doc.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("document lost across restart")
	}

	// Closing twice is safe, and resolution after close fails.
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("re-close: %v", err)
	}
	if _, err := rt.Store("acme"); err == nil {
		t.Fatal("store resolved on closed runtime")
	}
}
