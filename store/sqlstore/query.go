package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/store"
)

const contractColumns = `c.id, c.slug, c.question, c.creator_id, c.outcome_type, c.visibility,
	c.close_time, c.created_time, c.conversion_score, c.freshness_score, c.importance_score, c.view_count`

// contractRow 是 contractColumns 的扫描目标。
type contractRow struct {
	c              core.Contract
	close, created int64
}

func (r *contractRow) dest() []any {
	return []any{
		&r.c.ID, &r.c.Slug, &r.c.Question, &r.c.CreatorID, &r.c.OutcomeType, &r.c.Visibility,
		&r.close, &r.created,
		&r.c.ConversionScore, &r.c.FreshnessScore, &r.c.ImportanceScore, &r.c.ViewCount,
	}
}

func (r *contractRow) contract() *core.Contract {
	c := r.c
	c.CloseTime = fromMillis(r.close)
	c.CreatedTime = fromMillis(r.created)
	return &c
}

// topicValues 构造 `WITH uti(group_id, topic_score) AS (VALUES ...)`。
func topicValues(topics core.TopicProfile) (string, []any) {
	rows := make([]string, len(topics))
	args := make([]any, 0, 2*len(topics))
	for i, tw := range topics {
		rows[i] = "(?, ?)"
		args = append(args, tw.TopicID, tw.Weight)
	}
	return "WITH uti(group_id, topic_score) AS (VALUES " + strings.Join(rows, ", ") + ")", args
}

// window 返回 SQL 的 LIMIT / OFFSET 参数。有内存求值的谓词时不在 SQL 中分页。
func window(cl *clause, limit, offset int) (int, int) {
	if len(cl.exprs) > 0 || limit <= 0 {
		return -1, 0
	}
	return limit, max(offset, 0)
}

func (s *Store) QueryTopicWeighted(ctx context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	return s.queryTopics(ctx, q, q.Predicates,
		`AVG(uti.topic_score * c.conversion_score * c.freshness_score) DESC, c.id`)
}

func (s *Store) QueryFollowed(ctx context.Context, q *core.CandidateQuery) ([]core.ScoredContract, error) {
	preds := append(append([]core.Predicate(nil), q.Predicates...), core.CreatorFollowedBy(q.UserID))
	return s.queryTopics(ctx, q, preds, `c.conversion_score DESC, c.id`)
}

func (s *Store) queryTopics(ctx context.Context, q *core.CandidateQuery, preds []core.Predicate, orderBy string) ([]core.ScoredContract, error) {
	if q.Topics.IsEmpty() {
		return nil, nil
	}
	now := s.now()
	cl, err := compile(preds, now)
	if err != nil {
		return nil, err
	}
	with, args := topicValues(q.Topics)
	limit, offset := window(cl, q.Limit, q.Offset)

	query := with + `
		SELECT ` + contractColumns + `, AVG(uti.topic_score) AS topic_conversion_score
		FROM uti
		JOIN group_contracts gc ON gc.group_id = uti.group_id
		JOIN contracts c ON c.id = gc.contract_id
		WHERE ` + cl.where() + `
		GROUP BY c.id
		ORDER BY ` + orderBy + `
		LIMIT ? OFFSET ?`
	args = append(args, cl.args...)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topic contracts: %w", err)
	}
	defer rows.Close()

	var out []core.ScoredContract
	for rows.Next() {
		var r contractRow
		var score sql.NullFloat64
		if err := rows.Scan(append(r.dest(), &score)...); err != nil {
			return nil, err
		}
		sc := core.ScoredContract{Contract: r.contract()}
		if score.Valid {
			v := score.Float64
			sc.TopicScore = &v
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	contracts := make([]*core.Contract, len(out))
	for i, sc := range out {
		contracts[i] = sc.Contract
	}
	if err := s.loadGroups(ctx, contracts); err != nil {
		return nil, err
	}

	if len(cl.exprs) == 0 {
		return out, nil
	}
	kept := out[:0]
	for _, sc := range out {
		ok, err := filter.MatchAll(cl.exprs, sc.Contract, nil, now)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, sc)
		}
	}
	return store.Paginate(kept, q.Limit, q.Offset), nil
}

func (s *Store) QueryGlobalTrending(ctx context.Context, q *core.TrendingQuery) ([]*core.Contract, error) {
	now := s.now()
	cl, err := compile(q.Predicates, now)
	if err != nil {
		return nil, err
	}
	limit, offset := window(cl, q.Limit, q.Offset)

	query := `SELECT ` + contractColumns + `
		FROM contracts c
		WHERE ` + cl.where() + `
		ORDER BY c.importance_score DESC, c.id
		LIMIT ? OFFSET ?`
	args := append(cl.args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trending contracts: %w", err)
	}
	defer rows.Close()

	var out []*core.Contract
	for rows.Next() {
		var r contractRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		out = append(out, r.contract())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadGroups(ctx, out); err != nil {
		return nil, err
	}

	if len(cl.exprs) == 0 {
		return out, nil
	}
	kept := out[:0]
	for _, c := range out {
		ok, err := filter.MatchAll(cl.exprs, c, nil, now)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, c)
		}
	}
	return store.Paginate(kept, q.Limit, q.Offset), nil
}

// loadGroups 批量填充合约的话题归属。
func (s *Store) loadGroups(ctx context.Context, contracts []*core.Contract) error {
	if len(contracts) == 0 {
		return nil
	}
	byID := make(map[string][]*core.Contract, len(contracts))
	ids := make([]any, 0, len(contracts))
	for _, c := range contracts {
		if _, ok := byID[c.ID]; !ok {
			ids = append(ids, c.ID)
		}
		byID[c.ID] = append(byID[c.ID], c)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT contract_id, group_id FROM group_contracts
		WHERE contract_id IN (`+placeholders(len(ids))+`) ORDER BY contract_id, group_id`, ids...)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, gid string
		if err := rows.Scan(&cid, &gid); err != nil {
			return err
		}
		for _, c := range byID[cid] {
			c.GroupIDs = append(c.GroupIDs, gid)
		}
	}
	return rows.Err()
}

// TopicActivity 统计 since 之后创建、仍未关闭的合约，按话题累加 importance。
func (s *Store) TopicActivity(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT gc.group_id, SUM(c.importance_score)
		FROM contracts c
		JOIN group_contracts gc ON gc.contract_id = c.id
		WHERE c.created_time >= ? AND c.close_time > ?
		GROUP BY gc.group_id`, since.UnixMilli(), s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("topic activity: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var gid string
		var score float64
		if err := rows.Scan(&gid, &score); err != nil {
			return nil, err
		}
		out[gid] = score
	}
	return out, rows.Err()
}
