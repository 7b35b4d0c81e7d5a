// Package sqlstore 是基于 SQLite（modernc.org/sqlite，纯 Go）的内容存储。
//
// 实现 core.ContentStore、core.RepostProvider、core.ProfileBuilder、
// core.ActiveUserLister 与 topic.ActivitySource。
// 谓词由 compile 翻译成 WHERE 片段；CEL 表达式谓词在查询后于内存中求值。
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/store"
)

// Store 是 SQLite 内容存储。
type Store struct {
	db     *sql.DB
	opts   store.RepostOptions
	now    func() time.Time
	logger zerolog.Logger
}

var (
	_ core.ContentStore     = (*Store)(nil)
	_ core.RepostProvider   = (*Store)(nil)
	_ core.ProfileBuilder   = (*Store)(nil)
	_ core.ActiveUserLister = (*Store)(nil)
)

// Open 打开数据库并初始化表结构。
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ctx context.Context, dsn string, opts store.RepostOptions, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite 单写者
	db.SetMaxOpenConns(1)

	if opts.Window <= 0 {
		opts.Window = store.DefaultRepostWindow
	}
	s := &Store{
		db:     db,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "sqlstore").Logger(),
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// SetClock 替换时钟（测试用）。
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Name() string { return "sqlite" }

// Close 关闭数据库连接。
func (s *Store) Close() error { return s.db.Close() }

// Ping 检查数据库可用。
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// 写入方法，供离线任务 / 测试灌数

// PutContract 写入合约及其话题归属（覆盖）。
func (s *Store) PutContract(ctx context.Context, c *core.Contract) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO contracts
		(id, slug, question, creator_id, outcome_type, visibility, close_time, created_time,
		 conversion_score, freshness_score, importance_score, view_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Slug, c.Question, c.CreatorID, c.OutcomeType, c.Visibility,
		c.CloseTime.UnixMilli(), c.CreatedTime.UnixMilli(),
		c.ConversionScore, c.FreshnessScore, c.ImportanceScore, c.ViewCount)
	if err != nil {
		return fmt.Errorf("insert contract %s: %w", c.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_contracts WHERE contract_id = ?`, c.ID); err != nil {
		return err
	}
	for _, g := range c.GroupIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO group_contracts (group_id, contract_id) VALUES (?, ?)`, g, c.ID); err != nil {
			return fmt.Errorf("insert group %s for %s: %w", g, c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Follow(ctx context.Context, userID, followID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO user_follows (user_id, follow_id) VALUES (?, ?)`, userID, followID)
	return err
}

func (s *Store) MarkDisinterested(ctx context.Context, userID, contractID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO user_disinterests (user_id, contract_id) VALUES (?, ?)`, userID, contractID)
	return err
}

// RecordView 记录浏览，保留最近一次时间。
func (s *Store) RecordView(ctx context.Context, userID, contractID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_contract_views (user_id, contract_id, last_view_ts) VALUES (?, ?, ?)
		ON CONFLICT(user_id, contract_id) DO UPDATE SET last_view_ts = MAX(last_view_ts, excluded.last_view_ts)`,
		userID, contractID, at.UnixMilli())
	return err
}

func (s *Store) PutComment(ctx context.Context, c *core.Comment) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO contract_comments
		(comment_id, contract_id, user_id, text, likes, hidden, bet_id, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ContractID, c.UserID, c.Text, c.Likes, c.Hidden, c.BetID, c.CreatedTime.UnixMilli())
	return err
}

func (s *Store) PutBet(ctx context.Context, b *core.Bet) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO contract_bets
		(bet_id, contract_id, user_id, amount, outcome, created_time) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.ContractID, b.UserID, b.Amount, b.Outcome, b.CreatedTime.UnixMilli())
	return err
}

func (s *Store) PutRepost(ctx context.Context, r *core.Repost) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO posts
		(id, contract_id, contract_comment_id, bet_id, user_id, user_name, user_username, user_avatar_url, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ContractID, r.CommentID, r.BetID, r.UserID, r.UserName, r.UserUsername, r.UserAvatarURL,
		r.CreatedTime.UnixMilli())
	return err
}

// SetTopicInterests 整体替换用户的预计算话题兴趣。
func (s *Store) SetTopicInterests(ctx context.Context, userID string, profile core.TopicProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_topic_interests WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, tw := range profile {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO user_topic_interests (user_id, group_id, score) VALUES (?, ?, ?)`,
			userID, tw.TopicID, tw.Weight); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) JoinGroup(ctx context.Context, userID, groupID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO group_members (member_id, group_id) VALUES (?, ?)`, userID, groupID)
	return err
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
