package main

import (
	"chat-relay/auth"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
)

// Exit codes for the token tool.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the environment the token mint shares with the relay.
type Config struct {
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen error: %v\n", err)
	}
	os.Exit(code)
}

// run mints a development JWT for the given user id, signed with the same
// secret the relay validates against.
func run() (int, error) {
	userID := flag.String("user", "", "user id to mint a token for")
	flag.Parse()
	if *userID == "" {
		return exitConfig, fmt.Errorf("missing -user")
	}

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	token, err := auth.GenerateToken([]byte(config.JWTSecret), *userID, config.AuthTokenDuration)
	if err != nil {
		return exitRuntime, err
	}
	fmt.Println(token)
	return exitOK, nil
}
