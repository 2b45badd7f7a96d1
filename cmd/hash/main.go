// Package main prints a bcrypt hash for the admin password so deployments can
// set admin.password_hash (RH_ADMIN_PASSWORD_HASH) instead of keeping the
// plain password in the environment.
//
//	hash <password>
//	echo -n "$ADMIN_PASSWORD" | hash
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/resourcehub/resourcehub/internal/auth"
)

func main() {
	password, err := readPassword(os.Args[1:], os.Stdin)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println(hash)
}

// readPassword takes the first argument, or the first line of stdin when no
// argument is given.
func readPassword(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("usage: %s <password>", os.Args[0])
	}
	return line, nil
}
