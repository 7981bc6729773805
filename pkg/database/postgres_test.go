package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/rootle-api/pkg/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:           "db",
		Port:           5432,
		User:           "rootle",
		Password:       "s3cret",
		Name:           "rootle",
		SSLMode:        "disable",
		ConnectTimeout: 3 * time.Second,
	}
	assert.Equal(t,
		"host=db port=5432 user=rootle password=s3cret dbname=rootle sslmode=disable application_name=rootle-api connect_timeout=3",
		DSN(cfg))
}

func TestDSNQuotesAwkwardValues(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "rootle", Password: `it's a \pass`, Name: "rootle"}
	assert.Equal(t,
		`host=db port=5432 user=rootle password='it\'s a \\pass' dbname=rootle application_name=rootle-api`,
		DSN(cfg))
}
