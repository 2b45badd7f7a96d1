// Package main is a development utility that generates a random admin
// session secret and, when a password is given, its bcrypt hash. It prints
// ready-to-paste environment lines for a local .env file.
//
//	go run ./scripts [password]
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/resourcehub/resourcehub/internal/auth"
)

func main() {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Admin session secret")
	fmt.Println("==========================================================")
	fmt.Printf("\nADMIN_SESSION_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(secret))

	if len(os.Args) > 1 {
		hash, err := auth.HashPassword(os.Args[1])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("RH_ADMIN_PASSWORD_HASH='%s'\n", hash)
	}
	fmt.Println("\n==========================================================")
}
