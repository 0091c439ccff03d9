package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/shandysiswandi/gomailer/internal/app"
)

// @title           GoMailer API
// @version         1.0
// @description     GoMailer sends email through SMTP, Gmail, Mailgun, SparkPost, Resend and Mailtrap, directly or through a mail queue.
// @contact.name    Contact Support
// @contact.url     https://github.com/shandysiswandi/gomailer
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT.
func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "./config/config.yaml"), "path to the YAML config file")
	drain := flag.Duration("shutdown-timeout", 30*time.Second, "time allowed for requests and queue jobs to finish")
	flag.Parse()

	application, err := app.New(app.Options{ConfigPath: *configPath})
	if err != nil {
		slog.Error("failed to start gomailer", "error", err)
		os.Exit(1)
	}

	<-application.Start()

	ctx, cancel := context.WithTimeout(context.Background(), *drain)
	defer cancel()
	application.Stop(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
