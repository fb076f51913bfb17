// Command certifyd serves the certification API and runs the periodic
// reconciliation job.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JaimeStill/certify/internal/config"
)

func main() {
	once := flag.Bool("once", false, "Run one reconciliation pass and exit")
	flag.Parse()

	// a missing .env file is not an error
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatal("server init failed: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		report, err := srv.RunOnce(ctx)
		if err != nil {
			log.Fatal("reconciliation failed: ", err)
		}
		for _, step := range report.Steps {
			if step.Failed() {
				log.Printf("step %s failed: %s", step.Name, step.Error)
			}
		}
		if report.Failed() {
			os.Exit(1)
		}
		return
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
