package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/database"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	// A running API server owns the database file; migrating underneath it
	// would race its own startup migration.
	lock, err := localstore.Lock(cfg.DatabaseFilePath)
	if err != nil {
		log.Err(err).Fatal("database lock error")
	}
	defer localstore.Unlock(lock)

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db)

	app := &cli.App{
		Name:  "migrations",
		Usage: "manage the folio local store schema",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					group, err := migrations.Apply(c.Context, db)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("There are no new migrations to run")
						return nil
					}
					fmt.Printf("Migrated to %s\n", group)
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "roll back the last migration group",
				Action: func(c *cli.Context) error {
					if err := migrator.Init(c.Context); err != nil {
						return err
					}
					group, err := migrator.Rollback(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("There are no groups to roll back")
						return nil
					}
					fmt.Printf("Rolled back %s\n", group)
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "create a Go migration",
				ArgsUsage: "<words describing the change>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("a migration name is required", 1)
					}
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name, migrate.WithGoTemplate(migrationTemplate))
					if err != nil {
						return err
					}
					fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print every migration and whether it has been applied",
				Action: func(c *cli.Context) error {
					if err := migrator.Init(c.Context); err != nil {
						return err
					}
					ms, err := migrator.MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}

					tw := table.NewWriter()
					tw.SetStyle(table.StyleRounded)
					tw.AppendHeader(table.Row{"Migration", "Group", "Applied At"})
					for _, m := range ms {
						applied := "pending"
						if m.IsApplied() {
							applied = m.MigratedAt.Format("2006-01-02 15:04:05")
						}
						tw.AppendRow(table.Row{m.Name, m.GroupID, applied})
					}
					fmt.Println(tw.Render())
					fmt.Printf("%d unapplied, last group %s\n", len(ms.Unapplied()), ms.LastGroup())
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

const migrationTemplate = `package %s

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
`
