package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	appName string = "store-cleaner"
)

// entities sharing a name in these tables make name based reconciliation
// fault with an ambiguous match
var cleanableTables = []string{"THINGS", "LOCATIONS"}

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg := LoadConfiguration(ctx)

	log.Debug("begin store clean", "apply", cfg.apply)

	p, err := connect(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer p.Close()

	var totalCount int64 = 0

	for _, table := range cleanableTables {
		l := log.With(slog.String("table", table))

		groups, err := findDuplicateNames(ctx, p, table)
		if err != nil {
			l.Error("failed to find duplicate names", "err", err.Error())
			os.Exit(1)
		}

		if len(groups) == 0 {
			l.Debug("found no duplicates")
			continue
		}

		for _, g := range groups {
			l.Info("entities share a name", slog.String("name", g.name), slog.Int64("count", g.count))
		}

		if !cfg.apply {
			continue
		}

		l.Debug("delete all but the oldest of each group", slog.Time("start_time", time.Now()))

		ids, err := findRedundantIDs(ctx, p, table)
		if err != nil {
			l.Error("failed to get redundant ids", "err", err.Error())
			os.Exit(1)
		}

		err = deleteByID(ctx, p, table, ids)
		if err != nil {
			l.Error("failed to delete duplicates", "err", err.Error())
			os.Exit(1)
		}

		totalCount += int64(len(ids))

		err = vacuum(ctx, p, table)
		if err != nil {
			l.Error("failed to vacuum table", "err", err.Error())
			os.Exit(1)
		}

		l.Debug("done cleaning duplicates", slog.Int("count", len(ids)), slog.Time("end_time", time.Now()))
	}

	if cfg.apply {
		log.Info("done cleaning", slog.Int64("total", totalCount))
	} else {
		log.Info("report only, set CLEANER_APPLY=true to delete")
	}
}

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string

	apply bool
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "sensorthings"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),

		apply: env.GetVariableOrDefault(ctx, "CLEANER_APPLY", "false") == "true",
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return conn, err
}

type duplicateGroup struct {
	name  string
	count int64
}

func findDuplicateNames(ctx context.Context, p *pgxpool.Pool, table string) ([]duplicateGroup, error) {
	sql := fmt.Sprintf(`SELECT "NAME", count(*) FROM %q GROUP BY "NAME" HAVING count(*) > 1 ORDER BY "NAME";`, table)

	rows, err := p.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]duplicateGroup, 0)

	for rows.Next() {
		var g duplicateGroup
		err := rows.Scan(&g.name, &g.count)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, nil
}

func findRedundantIDs(ctx context.Context, p *pgxpool.Pool, table string) ([]int64, error) {
	sql := fmt.Sprintf(`
		select "ID" from (
			SELECT "ID", ROW_NUMBER() OVER(PARTITION BY "NAME" ORDER BY "ID") AS Row
			FROM %q
		) dups
		where dups.Row > 1;`, table)

	rows, err := p.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)

	for rows.Next() {
		var id int64
		err := rows.Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func deleteByID(ctx context.Context, p *pgxpool.Pool, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`DELETE FROM %q WHERE "ID"=$1;`, table)

	for _, id := range ids {
		_, err := tx.Exec(ctx, sql, id)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	return tx.Commit(ctx)
}

func vacuum(ctx context.Context, p *pgxpool.Pool, table string) error {
	_, err := p.Exec(ctx, fmt.Sprintf("VACUUM ANALYZE %q;", table))
	if err != nil {
		return err
	}

	return nil
}
