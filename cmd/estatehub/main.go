package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estatehub/marketplace/config"
	"github.com/estatehub/marketplace/internal/adminapi"
	"github.com/estatehub/marketplace/internal/app"
	"github.com/estatehub/marketplace/internal/webserver"
)

var (
	h        = flag.Bool("h", false, "help usage")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then seed the catalog")
	token    = flag.Int64("token", 0, "print an api token for this user id and exit")
	role     = flag.String("role", webserver.RoleUser, "role for -token: user or admin")
	ttl      = flag.Duration("ttl", 24*time.Hour, "lifetime for -token")
)

func main() {
	flag.Parse()

	if *h {
		flag.Usage()
		return
	}

	cfg := config.LoadConfig(*conffile)

	if *token > 0 {
		s, err := webserver.SignToken(cfg.Web.Secret, *token, *role, *ttl)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(s)
		return
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	webserver.Init(application)
	adminapi.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Start(gctx)
	})
	g.Go(func() error {
		return application.StartBackgroundJobs(gctx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("estatehub stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("estatehub stopped")
}
