package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cppla/inkblog/app"
	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/services"
	"github.com/cppla/inkblog/utils"
)

func loadConfig(c *cli.Context) (config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if err := utils.InitLogger(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()

	application, cleanup, err := app.InitApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Bool("migrate") {
		if err := models.AutoMigrate(application.DB); err != nil {
			return err
		}
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	return utils.Serve(c.Context, utils.NewHTTPServer(":"+cfg.AppPort, application.Engine))
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = config.CloseDatabase(db) }()

	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	utils.Logger.Info("schema migrated", zap.String("driver", cfg.DBDriver))
	return nil
}

func reconcileLikes(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = config.CloseDatabase(db) }()

	likes := &services.LikeService{DB: db}
	n, err := likes.ReconcileAll(c.Context)
	if err != nil {
		return err
	}
	utils.Logger.Info("like counts reconciled", zap.Int64("articles", n))
	return nil
}

func main() {
	cliApp := &cli.App{
		Name:  "inkblog",
		Usage: "blog API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.json or config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start http server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply schema migrations before serving"},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update database tables",
				Action: migrate,
			},
			{
				Name:   "reconcile-likes",
				Usage:  "recompute every article's like count from its like rows",
				Action: reconcileLikes,
			},
		},
		DefaultCommand: "serve",
	}
	if err := cliApp.Run(os.Args); err != nil {
		utils.Logger.Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "inkblog:", err)
		os.Exit(1)
	}
}
