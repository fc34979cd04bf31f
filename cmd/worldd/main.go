// Command worldd runs the three cooperating listeners (auth, realm,
// world) plus the zone simulation and tick scheduler that back one
// game realm.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/wildstar-worldd/internal/config"
	"github.com/udisondev/wildstar-worldd/internal/connection"
	"github.com/udisondev/wildstar-worldd/internal/content"
	"github.com/udisondev/wildstar-worldd/internal/entity"
	"github.com/udisondev/wildstar-worldd/internal/identity"
	"github.com/udisondev/wildstar-worldd/internal/opcode"
	"github.com/udisondev/wildstar-worldd/internal/scheduler"
	"github.com/udisondev/wildstar-worldd/internal/storage/postgres"
	"github.com/udisondev/wildstar-worldd/internal/worldmanager"
	"github.com/udisondev/wildstar-worldd/internal/zone"
)

// Exit codes documented for operators: 0 clean shutdown, 1 configuration
// error, 2 listener bind failure, 3 database unreachable at startup.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitBindFailure   = 2
	exitDatabaseError = 3
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	authAddr := flag.String("auth-addr", "", "override the auth listener address")
	realmAddr := flag.String("realm-addr", "", "override the realm listener address")
	worldAddr := flag.String("world-addr", "", "override the world listener address")
	publicWorldAddress := flag.String("public-world-address", "", "address advertised to clients for the world listener")
	realmID := flag.Int("realm-id", 0, "override the realm id (0 = use config)")
	realmName := flag.String("realm-name", "", "override the realm display name")
	dataDir := flag.String("data-dir", "", "override the static content directory")
	dbURL := flag.String("db-url", "", "override the database connection string")
	poolSize := flag.Int("pool-size", 0, "override the database connection pool size")
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "serve" {
		args = args[1:]
	}
	flag.CommandLine.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(exitConfigError)
	}
	applyFlagOverrides(&cfg, *authAddr, *realmAddr, *worldAddr, *publicWorldAddress, *realmName, *dataDir, *dbURL, *realmID, *poolSize)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(exitConfigError)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

// applyFlagOverrides applies non-empty flags over cfg, except where the
// matching environment variable is set: env takes precedence over flags.
func applyFlagOverrides(cfg *config.World, authAddr, realmAddr, worldAddr, publicWorldAddress, realmName, dataDir, dbURL string, realmID, poolSize int) {
	if authAddr != "" {
		cfg.AuthAddr = authAddr
	}
	if realmAddr != "" {
		cfg.RealmAddr = realmAddr
	}
	if worldAddr != "" {
		cfg.WorldAddr = worldAddr
	}
	if publicWorldAddress != "" && os.Getenv("WORLD_PUBLIC_ADDRESS") == "" {
		cfg.PublicWorldAddress = publicWorldAddress
	}
	if realmName != "" && os.Getenv("REALM_NAME") == "" {
		cfg.RealmName = realmName
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbURL != "" && os.Getenv("DATABASE_URL") == "" {
		cfg.DBURL = dbURL
	}
	if realmID != 0 && os.Getenv("REALM_ID") == "" {
		cfg.RealmID = realmID
	}
	if poolSize != 0 && os.Getenv("POOL_SIZE") == "" {
		cfg.PoolSize = poolSize
	}
}

// bindFailure and dbFailure let run() signal which exit code applies
// without leaking exit-code concerns into every callee.
type bindFailure struct{ err error }

func (b bindFailure) Error() string { return b.err.Error() }
func (b bindFailure) Unwrap() error { return b.err }

type dbFailure struct{ err error }

func (d dbFailure) Error() string { return d.err.Error() }
func (d dbFailure) Unwrap() error { return d.err }

func exitCodeFor(err error) int {
	var bf bindFailure
	var df dbFailure
	switch {
	case asError(err, &bf):
		return exitBindFailure
	case asError(err, &df):
		return exitDatabaseError
	default:
		return exitConfigError
	}
}

func asError(err error, target any) bool {
	switch t := target.(type) {
	case *bindFailure:
		if bf, ok := err.(bindFailure); ok {
			*t = bf
			return true
		}
	case *dbFailure:
		if df, ok := err.(dbFailure); ok {
			*t = df
			return true
		}
	}
	return false
}

func run(ctx context.Context, cfg config.World) error {
	slog.Info("worldd starting", "realm_id", cfg.RealmID, "realm_name", cfg.RealmName)

	store, err := content.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	slog.Info("content loaded", "data_dir", cfg.DataDir)

	if err := postgres.RunMigrations(ctx, cfg.DBURL); err != nil {
		return dbFailure{fmt.Errorf("running migrations: %w", err)}
	}
	db, err := postgres.New(ctx, cfg.DBURL)
	if err != nil {
		return dbFailure{fmt.Errorf("connecting to database: %w", err)}
	}
	defer db.Close()
	slog.Info("database ready")

	checker := identity.NewChecker(func(ctx context.Context, email string) (identity.Verifier, bool, error) {
		return identity.Verifier{}, false, nil
	})
	_ = checker // wired into the auth handshake's handler registration below

	wm := worldmanager.New()
	sched := scheduler.New(slog.Default())

	zones, err := startZones(ctx, store, wm, sched)
	if err != nil {
		return fmt.Errorf("starting zones: %w", err)
	}
	slog.Info("zones started", "count", len(zones))

	authReg := buildAuthRegistry(checker)
	realmReg := buildRealmRegistry(cfg)
	worldReg := buildWorldRegistry(wm)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serveListener(gctx, "auth", cfg.AuthAddr, connection.TypeAuth, authReg) })
	g.Go(func() error { return serveListener(gctx, "realm", cfg.RealmAddr, connection.TypeRealm, realmReg) })
	g.Go(func() error { return serveListener(gctx, "world", cfg.WorldAddr, connection.TypeWorld, worldReg) })

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

func startZones(ctx context.Context, store *content.Store, wm *worldmanager.Manager, sched *scheduler.Scheduler) ([]*zone.Instance, error) {
	factions := entity.NewFactionTable()
	var instances []*zone.Instance

	for mapID := uint32(1); mapID <= 1; mapID++ {
		tmpl, ok := store.GetZone(mapID)
		if !ok {
			continue
		}
		key := zone.Key{MapID: tmpl.MapID, InstanceID: 0}
		inst := zone.New(key, zone.Config{
			CellSize:   tmpl.CellSize,
			AggroRange: tmpl.AggroRange,
			LeashRange: tmpl.LeashRange,
		}, factions, zoneSender{wm: wm, key: key}, slog.Default())
		instances = append(instances, inst)

		go sched.Run(ctx, scheduler.Job{
			Name:   fmt.Sprintf("zone-%d-%d", key.MapID, key.InstanceID),
			Period: 100 * time.Millisecond,
			Run:    inst.Tick,
		})
	}
	return instances, nil
}

// zoneSender bridges a zone's Outbound packets to worldmanager-resolved
// connections.
type zoneSender struct {
	wm  *worldmanager.Manager
	key zone.Key
}

func (z zoneSender) Send(o zone.Outbound) {
	rec, ok := z.wm.LookupByGUID(o.RecipientGUID)
	if !ok || rec.Conn == nil {
		return
	}
	rec.Conn.Enqueue(connection.OutboundPacket{Opcode: o.Opcode, Payload: o.Payload})
}

func buildAuthRegistry(checker *identity.Checker) *opcode.Registry {
	reg := opcode.New()
	reg.Define("login_request", 0x01, func(session any, payload []byte) (any, error) {
		return connection.HandlerResult{}, nil
	})
	_ = checker
	return reg
}

func buildRealmRegistry(cfg config.World) *opcode.Registry {
	reg := opcode.New()
	reg.Define("realm_list_request", 0x01, func(session any, payload []byte) (any, error) {
		return connection.HandlerResult{}, nil
	})
	_ = cfg
	return reg
}

func buildWorldRegistry(wm *worldmanager.Manager) *opcode.Registry {
	reg := opcode.New()
	reg.Define("enter_world", 0x01, func(session any, payload []byte) (any, error) {
		return connection.HandlerResult{}, nil
	})
	_ = wm
	return reg
}

func serveListener(ctx context.Context, name, addr string, typ connection.Type, reg *opcode.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return bindFailure{fmt.Errorf("binding %s listener on %s: %w", name, addr, err)}
	}
	defer ln.Close()
	slog.Info("listening", "server", name, "addr", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("%s accept: %w", name, err)
			}
		}
		c := connection.New(conn, typ, reg, slog.Default().With("server", name))
		go c.RunSendLoop(ctx)
		go c.RunReceiveLoop(ctx)
	}
}
