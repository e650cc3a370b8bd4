package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
)

// tokengen mints access tokens signed with JWT_SECRET for local testing and
// operator scripts.
func main() {
	subject := flag.String("sub", "operator", "token subject")
	role := flag.String("role", string(models.RoleAdmin), "ADMIN, REGISTRAR or STUDENT")
	studentID := flag.String("student", "", "student ID claim (required for STUDENT)")
	ttl := flag.Duration("ttl", 0, "override JWT_EXPIRATION")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *ttl > 0 {
		cfg.JWT.Expiration = *ttl
	}

	token, expiresAt, err := service.NewTokenService(cfg.JWT).Issue(*subject, models.Role(*role), *studentID)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires at %s", expiresAt.Format(time.RFC3339))
}
