// Command convert-token exchanges a manually obtained Upstox authorization
// code for an access token and prints it. One-shot; the polling bot reads the
// resulting token from ACCESS_TOKEN.
//
// Open in a browser (with your own client_id / redirect_uri):
//
//	https://api.upstox.com/v2/login/authorization/dialog?response_type=code&client_id=...&redirect_uri=...
//
// then paste the code from the redirect URL when prompted.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gammawatch/internal/upstox"
)

func main() {
	_ = godotenv.Load(".env")

	clientID := strings.TrimSpace(os.Getenv("UPSTOX_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("UPSTOX_CLIENT_SECRET"))
	redirectURI := strings.TrimSpace(os.Getenv("UPSTOX_REDIRECT_URI"))
	if clientID == "" || clientSecret == "" || redirectURI == "" {
		fmt.Fprintln(os.Stderr, "set UPSTOX_CLIENT_ID, UPSTOX_CLIENT_SECRET and UPSTOX_REDIRECT_URI")
		os.Exit(1)
	}

	fmt.Println("Paste auth code (everything after code=):")
	fmt.Print("> ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	code := strings.TrimSpace(line)
	if code == "" {
		fmt.Fprintln(os.Stderr, "no code entered")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	token, err := upstox.ExchangeToken(ctx, os.Getenv("UPSTOX_BASE_URL"), clientID, clientSecret, redirectURI, code)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token exchange failed:", err)
		os.Exit(1)
	}
	fmt.Println("\nACCESS_TOKEN:")
	fmt.Println(token)
}
