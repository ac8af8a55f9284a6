// hashpass prints the Argon2id hash of the admin password for
// VITRINE_ADMIN_PASSWORD_HASH.
//
// Usage (run from the repo root):
//
//	go run ./scripts/hashpass < password.txt
//
// The password is read from the first line of stdin so it does not end up
// in shell history.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ashita-ai/vitrine/internal/auth"
)

func main() {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "error: read password from stdin:", err)
		os.Exit(1)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "error: empty password")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
