package chat

import (
	"context"
	"database/sql"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          BIGSERIAL PRIMARY KEY,
	message_id  TEXT NOT NULL,
	chat_id     TEXT NOT NULL,
	sender      TEXT NOT NULL,
	sender_name TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS messages_chat_id_created_at ON messages (chat_id, created_at);
`

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

// EnsureSchema creates the messages table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (r *repo) SaveMessage(ctx context.Context, msg *Message) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, chat_id, sender, sender_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		msg.ID,
		msg.ChatID,
		string(msg.Sender),
		msg.SenderName,
		msg.Text,
		createdAt,
	)
	return err
}

func (r *repo) GetHistory(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, chat_id, sender, sender_name, text, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sender string
		if err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&sender,
			&m.SenderName,
			&m.Text,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Sender = Sender(sender)
		out = append(out, m)
	}

	return out, rows.Err()
}

// NopRepo is used when no database is configured.
type NopRepo struct{}

func (NopRepo) SaveMessage(context.Context, *Message) error { return nil }

func (NopRepo) GetHistory(context.Context, string) ([]Message, error) { return nil, nil }
