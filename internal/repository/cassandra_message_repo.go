package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

// CassandraConfig holds the gocql cluster settings.
type CassandraConfig struct {
	Hosts          []string      `mapstructure:"hosts"`
	Keyspace       string        `mapstructure:"keyspace"`
	Consistency    string        `mapstructure:"consistency"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// CassandraMessageRepository implements MessageRepository on Cassandra.
//
// Schema:
//
//	messages_by_room (room_id, seq, id, from_id, from_name, text, ts)
//	  PRIMARY KEY (room_id, seq)
//	conversations_by_user (user_id, room_id, other_id, last_msg_id,
//	  last_seq, last_from_id, last_from_name, last_text, updated_at)
//	  PRIMARY KEY (user_id, room_id)
//
// Each append writes the message row plus one conversation row per
// participant in a logged batch. Conversation rows for a user are few,
// so listing sorts them client-side by updated_at.
type CassandraMessageRepository struct {
	session *gocql.Session
}

func NewCassandraMessageRepository(cfg CassandraConfig) (*CassandraMessageRepository, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout

	switch cfg.Consistency {
	case "LOCAL_ONE":
		cluster.Consistency = gocql.LocalOne
	case "LOCAL_QUORUM":
		cluster.Consistency = gocql.LocalQuorum
	case "ONE":
		cluster.Consistency = gocql.One
	case "QUORUM":
		cluster.Consistency = gocql.Quorum
	default:
		cluster.Consistency = gocql.LocalQuorum
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	return &CassandraMessageRepository{session: session}, nil
}

func (r *CassandraMessageRepository) Append(ctx context.Context, msg *domain.Message, participants [2]string) error {
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(
		`INSERT INTO messages_by_room (room_id, seq, id, from_id, from_name, text, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.RoomID, msg.Seq, msg.ID, msg.FromID, msg.FromName, msg.Text, msg.Timestamp,
	)

	for _, viewer := range participants {
		otherID := participants[0]
		if otherID == viewer {
			otherID = participants[1]
		}
		batch.Query(
			`INSERT INTO conversations_by_user
			 (user_id, room_id, other_id, last_msg_id, last_seq, last_from_id, last_from_name, last_text, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			viewer, msg.RoomID, otherID, msg.ID, msg.Seq, msg.FromID, msg.FromName, msg.Text, msg.Timestamp,
		)
	}

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to append message batch: %w", err)
	}
	return nil
}

func (r *CassandraMessageRepository) ListMessages(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error) {
	query := `SELECT id, seq, from_id, from_name, text, ts
			  FROM messages_by_room
			  WHERE room_id = ? AND seq > ?
			  ORDER BY seq ASC`
	args := []interface{}{roomID, afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	iter := r.session.Query(query, args...).WithContext(ctx).Iter()

	var messages []domain.Message
	var msg domain.Message
	msg.RoomID = roomID
	for iter.Scan(&msg.ID, &msg.Seq, &msg.FromID, &msg.FromName, &msg.Text, &msg.Timestamp) {
		messages = append(messages, msg)
		msg = domain.Message{RoomID: roomID}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (r *CassandraMessageRepository) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	iter := r.session.Query(
		`SELECT room_id, other_id, last_msg_id, last_seq, last_from_id, last_from_name, last_text, updated_at
		 FROM conversations_by_user
		 WHERE user_id = ?`,
		userID,
	).WithContext(ctx).Iter()

	var summaries []domain.ConversationSummary
	var s domain.ConversationSummary
	for iter.Scan(
		&s.RoomID, &s.OtherID,
		&s.LastMsg.ID, &s.LastMsg.Seq, &s.LastMsg.FromID, &s.LastMsg.FromName, &s.LastMsg.Text, &s.UpdatedAt,
	) {
		s.LastMsg.RoomID = s.RoomID
		s.LastMsg.Timestamp = s.UpdatedAt
		if s.LastMsg.FromID == s.OtherID {
			s.OtherName = s.LastMsg.FromName
		}
		summaries = append(summaries, s)
		s = domain.ConversationSummary{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (r *CassandraMessageRepository) LatestSeq(ctx context.Context, roomID string) (int64, error) {
	var seq int64
	err := r.session.Query(
		`SELECT seq FROM messages_by_room WHERE room_id = ? ORDER BY seq DESC LIMIT 1`,
		roomID,
	).WithContext(ctx).Scan(&seq)
	if err != nil {
		if err == gocql.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query latest seq: %w", err)
	}
	return seq, nil
}

func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}
