package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/store"
)

// Build 读取预计算的话题兴趣（按分数降序，最多 store.MaxInterestTopics 个），
// 再为用户加入的每个话题加 1。
func (s *Store) Build(ctx context.Context, userID string) (core.TopicProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id, score FROM user_topic_interests
		WHERE user_id = ? ORDER BY score DESC, group_id LIMIT ?`, userID, store.MaxInterestTopics)
	if err != nil {
		return nil, fmt.Errorf("query topic interests %s: %w", userID, err)
	}
	var profile core.TopicProfile
	for rows.Next() {
		var tw core.TopicWeight
		if err := rows.Scan(&tw.TopicID, &tw.Weight); err != nil {
			rows.Close()
			return nil, err
		}
		profile = append(profile, tw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups, err := s.memberGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store.AddGroupMembership(profile, groups), nil
}

func (s *Store) memberGroups(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id FROM group_members WHERE member_id = ? ORDER BY group_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query group members %s: %w", userID, err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ActiveUsers 返回 since 之后有浏览记录的用户。
func (s *Store) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM user_contract_views
		WHERE last_view_ts >= ? ORDER BY user_id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
