// Command kobukid runs the base driver as a standalone daemon: it opens
// the serial port (or starts in simulation), optionally serves the HTTP
// and websocket telemetry surface, and drives the base until signalled
// to stop.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kobuki-driver/kobuki/comms"
	kobuki "github.com/kobuki-driver/kobuki/driver"
)

func main() {
	configPath := flag.String("config", "./kobuki.yaml", "path to the driver config file")
	httpEnabled := flag.Bool("http", true, "serve the HTTP telemetry and control surface")
	flag.Parse()

	cfg, err := kobuki.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("kobukid: %v", err)
	}

	driver := kobuki.New(cfg)
	if err := driver.Start(); err != nil {
		log.Fatalf("kobukid: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	group, ctx := errgroup.WithContext(ctx)

	if *httpEnabled {
		auth := comms.NewAuthenticator([]byte(cfg.JWTSecret), []byte(cfg.OperatorPasswordHash))
		server := &http.Server{Addr: cfg.HTTPAddr, Handler: comms.NewRouter(driver, auth)}

		group.Go(func() error {
			log.Printf("kobukid: serving HTTP on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			return server.Close()
		})
	}

	group.Go(func() error {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
		return driver.Stop()
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("kobukid: %v", err)
	}
}
