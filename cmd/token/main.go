// Command token mints an operator bearer token for the ops HTTP API.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
)

func main() {
	operator := flag.String("operator", "", "name recorded as the token subject")
	scopes := flag.String("scopes", "", "comma separated scopes (default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var granted []auth.Scope
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			granted = append(granted, auth.Scope(s))
		}
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(*operator, granted...)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires at %s", expiresAt.UTC().Format(time.RFC3339))
}
