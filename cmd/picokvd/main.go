// Command picokvd is the cache daemon: it serves the RESP wire
// protocol on a TCP port and, optionally, a monitor HTTP endpoint for
// live observability.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onestore/picokv/broker"
	"github.com/onestore/picokv/command"
	"github.com/onestore/picokv/config"
	"github.com/onestore/picokv/hotkeys"
	"github.com/onestore/picokv/monitor"
	"github.com/onestore/picokv/server"
	"github.com/onestore/picokv/store"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("picokvd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "picokvd — in-memory cache daemon\n\nUsage:\n  picokvd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	dir := fs.String("dir", "", "directory for the RDB snapshot file (empty disables persistence)")
	fs.StringVar(dir, "d", "", "shorthand for --dir")
	dbfilename := fs.String("dbfilename", "dump.rdb", "RDB snapshot file name")
	fs.StringVar(dbfilename, "f", "dump.rdb", "shorthand for --dbfilename")
	port := fs.Int("port", 6379, "RESP listen port")
	fs.IntVar(port, "p", 6379, "shorthand for --port")
	httpAddr := fs.String("http", "", "monitor HTTP listen address (e.g. :9200, empty disables it)")
	hotThreshold := fs.Int("hotkey-threshold", 20, "hot-key detection threshold (0 to disable)")
	hotWindow := fs.Duration("hotkey-window", time.Second, "hot-key detection time window")
	hotCooldown := fs.Duration("hotkey-cooldown", 10*time.Second, "hot-key alert cooldown per key")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("picokvd %s\n", version)
		return
	}

	cfg := config.Config{
		Dir:        *dir,
		DBFilename: *dbfilename,
		Port:       *port,
		HTTPAddr:   *httpAddr,
	}

	if err := run(cfg, *hotThreshold, *hotWindow, *hotCooldown); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config, hotThreshold int, hotWindow, hotCooldown time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(256)

	var hot *hotkeys.Tracker
	if hotThreshold > 0 {
		hot = hotkeys.New(hotThreshold, hotWindow, hotCooldown)
		log.Printf("hot-key detection enabled (threshold=%d, window=%s, cooldown=%s)",
			hotThreshold, hotWindow, hotCooldown)
	}

	st := store.New()
	disp := command.New(st, cfg, hot)
	srv := server.New(cfg, st, disp, b)

	if cfg.HTTPAddr != "" {
		mon := monitor.New(b)

		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
		}
		go func() {
			log.Printf("monitor listening on %s", cfg.HTTPAddr)
			if err := mon.Serve(lis); err != nil {
				log.Printf("monitor serve: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mon.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("picokvd listening on :%d", cfg.Port)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
