package helper

import (
	"log"

	"gowalink/database"
)

// InitCustomSchema creates the application tables. Run once with
// --createschema; everything is idempotent so re-running is safe.
func InitCustomSchema() {
	db := database.AppDB

	userSchema := `
        CREATE TABLE IF NOT EXISTS users (
            id              SERIAL PRIMARY KEY,
            username        VARCHAR(255) UNIQUE NOT NULL,
            email           VARCHAR(255) UNIQUE NOT NULL,
            password_hash   TEXT NOT NULL,
            full_name       VARCHAR(255),
            role            VARCHAR(50) NOT NULL DEFAULT 'user',
            is_active       BOOLEAN NOT NULL DEFAULT true,
            created_at      TIMESTAMP NOT NULL DEFAULT NOW(),
            updated_at      TIMESTAMP NOT NULL DEFAULT NOW(),
            last_login_at   TIMESTAMP
        );

        CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
        CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
    `
	if _, err := db.Exec(userSchema); err != nil {
		log.Fatalf("failed to init users schema: %v", err)
	}

	tokenSchema := `
        CREATE TABLE IF NOT EXISTS refresh_tokens (
            id          SERIAL PRIMARY KEY,
            user_id     INT NOT NULL,
            token       VARCHAR(255) UNIQUE NOT NULL,
            expires_at  TIMESTAMP NOT NULL,
            created_at  TIMESTAMP NOT NULL DEFAULT NOW(),
            revoked     BOOLEAN NOT NULL DEFAULT false,
            ip_address  VARCHAR(64),
            user_agent  TEXT,

            CONSTRAINT fk_refresh_tokens_user
                FOREIGN KEY (user_id)
                REFERENCES users(id)
                ON DELETE CASCADE
        );

        CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token ON refresh_tokens(token);
        CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
    `
	if _, err := db.Exec(tokenSchema); err != nil {
		log.Fatalf("failed to init refresh_tokens schema: %v", err)
	}

	statusSchema := `
        CREATE TABLE IF NOT EXISTS session_status (
            session_id      VARCHAR(255) PRIMARY KEY,
            user_id         VARCHAR(255) NOT NULL,
            state           VARCHAR(50) NOT NULL,
            phone_number    VARCHAR(50),
            last_activity   TIMESTAMP NOT NULL DEFAULT NOW()
        );

        CREATE INDEX IF NOT EXISTS idx_session_status_user_id ON session_status(user_id);
        CREATE INDEX IF NOT EXISTS idx_session_status_state ON session_status(state);
    `
	if _, err := db.Exec(statusSchema); err != nil {
		log.Fatalf("failed to init session_status schema: %v", err)
	}

	log.Println("Schema ensured")
}
