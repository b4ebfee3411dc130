// Command token mints a bearer token for local testing of the API.
//
//	go run ./cmd/token -user 1 -role admin
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"grocery-checkout/internal/auth"

	"github.com/joho/godotenv"
)

func main() {
	userID := flag.Uint("user", 1, "user id to put in the token")
	role := flag.String("role", auth.RoleCustomer, "role: customer or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *role != auth.RoleCustomer && *role != auth.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	token, err := auth.NewTokenManager(secret, *ttl).GenerateToken(*userID, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
