// Command token issues a bearer token for an operator, signed with the
// server's JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/auth"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/config"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/pkg/logging"
)

func main() {
	user := flag.String("user", "", "operator name recorded in history and audit entries")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, *ttl).Generate(*user)
	if err != nil {
		slog.Error("Failed to generate token", "user", *user, "error", err)
		os.Exit(1)
	}
	slog.Debug("Token issued", "user", *user, "expires_in", ttl.String())
	fmt.Println(token)
}
