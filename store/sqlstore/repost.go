package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/store"
)

const repostColumns = contractColumns + `,
	cm.comment_id, cm.contract_id, cm.user_id, cm.text, cm.likes, cm.hidden, cm.bet_id, cm.created_time,
	b.bet_id, b.contract_id, b.user_id, b.amount, b.outcome, b.created_time,
	p.id, p.contract_id, p.contract_comment_id, p.bet_id, p.user_id, p.user_name, p.user_username,
	p.user_avatar_url, p.created_time`

// 转发的公共条件（表别名：p 转发、c 合约、cm 评论）；参数依次为 userID、now。
const repostQuality = `
	NOT EXISTS (SELECT 1 FROM user_contract_views v
		WHERE v.user_id = ? AND v.contract_id = p.contract_id AND p.created_time < v.last_view_ts)
	AND c.close_time > ?
	AND cm.hidden = 0
	AND c.outcome_type != 'STONK'
	AND c.visibility = 'public'
	AND NOT EXISTS (SELECT 1 FROM user_disinterests d WHERE d.user_id = p_user.id AND d.contract_id = c.id)`

type repostRow struct {
	contract contractRow
	comment  core.Comment
	cmTime   int64
	hidden   int64

	betID, betContract, betUser, betOutcome sql.NullString
	betAmount                               sql.NullFloat64
	betTime                                 sql.NullInt64

	post     core.Repost
	postTime int64

	topicScore sql.NullFloat64
}

func (r *repostRow) dest(withScore bool) []any {
	d := r.contract.dest()
	d = append(d,
		&r.comment.ID, &r.comment.ContractID, &r.comment.UserID, &r.comment.Text, &r.comment.Likes,
		&r.hidden, &r.comment.BetID, &r.cmTime,
		&r.betID, &r.betContract, &r.betUser, &r.betAmount, &r.betOutcome, &r.betTime,
		&r.post.ID, &r.post.ContractID, &r.post.CommentID, &r.post.BetID, &r.post.UserID, &r.post.UserName,
		&r.post.UserUsername, &r.post.UserAvatarURL, &r.postTime,
	)
	if withScore {
		d = append(d, &r.topicScore)
	}
	return d
}

func (r *repostRow) payload() (*core.Contract, *core.Comment, *core.Bet, *core.Repost) {
	comment := r.comment
	comment.Hidden = r.hidden != 0
	comment.CreatedTime = fromMillis(r.cmTime)

	var bet *core.Bet
	if r.betID.Valid {
		bet = &core.Bet{
			ID:          r.betID.String,
			ContractID:  r.betContract.String,
			UserID:      r.betUser.String,
			Amount:      r.betAmount.Float64,
			Outcome:     r.betOutcome.String,
			CreatedTime: fromMillis(r.betTime.Int64),
		}
	}

	post := r.post
	post.CreatedTime = fromMillis(r.postTime)
	return r.contract.contract(), &comment, bet, &post
}

func (s *Store) FollowedReposts(ctx context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	now := s.now()
	block, err := compile(q.Block, now)
	if err != nil {
		return nil, err
	}
	limit, offset := window(block, q.Limit, q.Offset)

	query := `WITH p_user(id) AS (VALUES (?))
		SELECT ` + repostColumns + `
		FROM posts p
		JOIN contracts c ON c.id = p.contract_id
		JOIN contract_comments cm ON cm.comment_id = p.contract_comment_id
		LEFT JOIN contract_bets b ON b.bet_id = cm.bet_id AND cm.bet_id != ''
		CROSS JOIN p_user
		WHERE p.user_id IN (SELECT follow_id FROM user_follows WHERE user_id = p_user.id)
		AND p.created_time > ?
		AND EXISTS (SELECT 1 FROM group_contracts g WHERE g.contract_id = c.id)
		AND ` + repostQuality + `
		AND ` + block.where() + `
		ORDER BY p.created_time DESC, p.id
		LIMIT ? OFFSET ?`
	args := []any{q.UserID, now.Add(-s.opts.Window).UnixMilli(), q.UserID, now.UnixMilli()}
	args = append(args, block.args...)
	args = append(args, limit, offset)

	rows, err := s.scanReposts(ctx, query, args, false)
	if err != nil {
		return nil, fmt.Errorf("query followed reposts: %w", err)
	}

	weights := q.Topics.Map()
	out := make([]*core.Candidate, 0, len(rows))
	for _, r := range rows {
		c, comment, bet, post := r.payload()
		if err := s.loadGroups(ctx, []*core.Contract{c}); err != nil {
			return nil, err
		}
		ok, err := filter.MatchAll(block.exprs, c, nil, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var ws []float64
		for _, g := range c.GroupIDs {
			if w, ok := weights[g]; ok {
				ws = append(ws, w)
			}
		}
		score := s.opts.ScorePrior
		if len(ws) > 0 {
			score = avg(ws)
		}
		cand, err := store.NewRepostCandidate(c, comment, bet, post, core.SourceRepostFollowed, score)
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	if len(block.exprs) > 0 {
		out = store.Paginate(out, q.Limit, q.Offset)
	}
	return out, nil
}

func (s *Store) TopicReposts(ctx context.Context, q *core.RepostQuery) ([]*core.Candidate, error) {
	var topics core.TopicProfile
	for _, tw := range q.Topics {
		if tw.Weight > s.opts.MinTopicScore {
			topics = append(topics, tw)
		}
	}
	if topics.IsEmpty() {
		return nil, nil
	}

	now := s.now()
	block, err := compile(q.Block, now)
	if err != nil {
		return nil, err
	}
	limit, offset := window(block, q.Limit, q.Offset)

	with, args := topicValues(topics)
	likes := `cm.likes > 0`
	if len(s.opts.StrictCommentUserIDs) > 0 {
		likes = `cm.likes > CASE WHEN cm.user_id IN (` + placeholders(len(s.opts.StrictCommentUserIDs)) + `) THEN 1 ELSE 0 END`
	}

	query := with + `, p_user(id) AS (VALUES (?))
		SELECT ` + repostColumns + `, AVG(uti.topic_score) AS topic_conversion_score
		FROM uti
		JOIN group_contracts gc ON gc.group_id = uti.group_id
		JOIN posts p ON p.contract_id = gc.contract_id
		JOIN contracts c ON c.id = p.contract_id
		JOIN contract_comments cm ON cm.comment_id = p.contract_comment_id
		LEFT JOIN contract_bets b ON b.bet_id = cm.bet_id AND cm.bet_id != ''
		CROSS JOIN p_user
		WHERE p.created_time > ?
		AND p.user_id NOT IN (SELECT follow_id FROM user_follows WHERE user_id = p_user.id)
		AND ` + likes + `
		AND ` + repostQuality + `
		AND ` + block.where() + `
		GROUP BY p.id
		ORDER BY AVG(uti.topic_score * c.conversion_score) DESC, p.id
		LIMIT ? OFFSET ?`
	args = append(args, q.UserID, now.Add(-s.opts.Window).UnixMilli())
	args = append(args, anySlice(s.opts.StrictCommentUserIDs)...)
	args = append(args, q.UserID, now.UnixMilli())
	args = append(args, block.args...)
	args = append(args, limit, offset)

	rows, err := s.scanReposts(ctx, query, args, true)
	if err != nil {
		return nil, fmt.Errorf("query topic reposts: %w", err)
	}

	out := make([]*core.Candidate, 0, len(rows))
	for _, r := range rows {
		c, comment, bet, post := r.payload()
		if err := s.loadGroups(ctx, []*core.Contract{c}); err != nil {
			return nil, err
		}
		ok, err := filter.MatchAll(block.exprs, c, nil, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cand, err := store.NewRepostCandidate(c, comment, bet, post, core.SourceRepostTopic,
			core.TopicScoreOrDefault(nullable(r.topicScore)))
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	if len(block.exprs) > 0 {
		out = store.Paginate(out, q.Limit, q.Offset)
	}
	return out, nil
}

func (s *Store) scanReposts(ctx context.Context, query string, args []any, withScore bool) ([]*repostRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repostRow
	for rows.Next() {
		r := &repostRow{}
		if err := rows.Scan(r.dest(withScore)...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func avg(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
