package db

import (
	"database/sql"
	"fmt"
	"log"

	"MusicPro/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createUsersTable(); err != nil {
		return err
	}
	if err := createUploadsTable(); err != nil {
		return err
	}
	log.Println("Database initialization completed.")
	return nil
}

func createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	log.Println("Users table initialized successfully (or already exists).")
	return nil
}

func createUploadsTable() error {
	// filename is the primary key; owner_id stays NULL under the token
	// strategy, delete_token_hash stays NULL under the session strategy.
	query := `
	CREATE TABLE IF NOT EXISTS uploads (
		filename VARCHAR(512) NOT NULL PRIMARY KEY,
		original_name VARCHAR(512) NOT NULL,
		size BIGINT NOT NULL,
		url VARCHAR(767) NOT NULL,
		uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		owner_id INT,
		delete_token_hash CHAR(64),
		cover_url VARCHAR(767),
		lyrics_url VARCHAR(767),
		CONSTRAINT fk_owner_uploads FOREIGN KEY (owner_id) REFERENCES users(id)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create uploads table: %w", err)
	}
	log.Println("Uploads table initialized successfully (or already exists).")
	return nil
}
