package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "xt", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=xt sslmode=disable", cfg.DSN())
}

func TestSchemaCoversAllTables(t *testing.T) {
	joined := ""
	for _, stmt := range schema {
		joined += stmt
	}
	for _, table := range []string{"products", "lots", "sales", "users"} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, joined, "current_stock >= 0")
}
