// Command token mints a JWT accepted by the server, for local testing.
package main

import (
	"flag"
	"fmt"
	"hire-chat/auth"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type config struct {
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func main() {
	user := flag.String("user", "", "user id carried by the token")
	roles := flag.String("roles", auth.RoleApplicant, "comma separated roles")
	duration := flag.Duration("duration", 0, "validity, AUTH_TOKEN_DURATION when 0")
	flag.Parse()

	_ = godotenv.Load()
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	if *duration == 0 {
		*duration = cfg.AuthTokenDuration
	}

	token, err := auth.GenerateToken([]byte(cfg.JWTSecret), *user, strings.Split(*roles, ","), *duration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
