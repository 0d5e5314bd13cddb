package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Settings is everything the service reads from the environment.
// Required values fail fast at boot; a missing secret must never turn
// into a silent default at request time.
type Settings struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string

	MailAPIURL string
	MailAPIKey string
	MailFrom   string
	MailTo     string

	UseGCS        bool
	GCSBucket     string
	UploadDir     string
	PublicBaseURL string

	SeedDemo bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	s := &Settings{
		Port:          getenv("PORT", "8080"),
		DatabaseDSN:   os.Getenv("DB_DSN"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		MailAPIURL:    getenv("MAIL_API_URL", "https://api.resend.com/emails"),
		MailAPIKey:    os.Getenv("MAIL_API_KEY"),
		MailFrom:      os.Getenv("MAIL_FROM"),
		MailTo:        os.Getenv("MAIL_TO"),
		UseGCS:        os.Getenv("USE_GCS") == "true",
		GCSBucket:     os.Getenv("GCS_BUCKET"),
		UploadDir:     getenv("UPLOAD_DIR", "./uploads"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", ""),
		SeedDemo:      os.Getenv("SEED_DEMO") == "true",
	}

	required := map[string]string{
		"DB_DSN":       s.DatabaseDSN,
		"JWT_SECRET":   s.JWTSecret,
		"MAIL_API_KEY": s.MailAPIKey,
		"MAIL_FROM":    s.MailFrom,
		"MAIL_TO":      s.MailTo,
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", name)
		}
	}
	if s.UseGCS && s.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required when USE_GCS=true")
	}
	return s, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Connect opens the database handle. The caller owns it and passes it
// down; nothing here keeps a package-level copy.
func Connect(s *Settings) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(s.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
