package sqlstore

import (
	"strings"
	"time"

	"github.com/rushteam/feedrank/core"
)

// clause 是谓词翻译后的 WHERE 片段与参数。
// 表别名约定：contracts 为 c。
type clause struct {
	conds []string
	args  []any

	// exprs 是无法下推到 SQL 的 CEL 谓词，查询后在内存中求值
	exprs []core.Predicate
}

func (cl *clause) add(cond string, args ...any) {
	cl.conds = append(cl.conds, cond)
	cl.args = append(cl.args, args...)
}

// where 返回以 " AND " 连接的条件；没有条件时返回 "1=1"。
func (cl *clause) where() string {
	if len(cl.conds) == 0 {
		return "1=1"
	}
	return strings.Join(cl.conds, " AND ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(vs []string) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// compile 按顺序翻译谓词。空列表的 *_not_in 谓词恒为真，直接跳过。
func compile(preds []core.Predicate, now time.Time) (*clause, error) {
	cl := &clause{}
	for _, p := range preds {
		switch p.Name {
		case core.PredNotSeen:
			cl.add(`NOT EXISTS (SELECT 1 FROM user_contract_views v WHERE v.user_id = ? AND v.contract_id = c.id)`, p.UserID)
		case core.PredOpen:
			cl.add(`c.close_time > ?`, now.UnixMilli())
		case core.PredPublic:
			cl.add(`c.visibility = ?`, core.VisibilityPublic)
		case core.PredOutcomeTypeNotIn:
			if len(p.Values) > 0 {
				cl.add(`c.outcome_type NOT IN (`+placeholders(len(p.Values))+`)`, anySlice(p.Values)...)
			}
		case core.PredNotDisinterested:
			cl.add(`NOT EXISTS (SELECT 1 FROM user_disinterests d WHERE d.user_id = ? AND d.contract_id = c.id)`, p.UserID)
		case core.PredContractNotIn:
			if len(p.Values) > 0 {
				cl.add(`c.id NOT IN (`+placeholders(len(p.Values))+`)`, anySlice(p.Values)...)
			}
		case core.PredCreatorNotIn:
			if len(p.Values) > 0 {
				cl.add(`c.creator_id NOT IN (`+placeholders(len(p.Values))+`)`, anySlice(p.Values)...)
			}
		case core.PredGroupNotIn:
			if len(p.Values) > 0 {
				cl.add(`NOT EXISTS (SELECT 1 FROM group_contracts gb WHERE gb.contract_id = c.id AND gb.group_id IN (`+
					placeholders(len(p.Values))+`))`, anySlice(p.Values)...)
			}
		case core.PredCreatorFollowed:
			cl.add(`c.creator_id IN (SELECT follow_id FROM user_follows WHERE user_id = ?)`, p.UserID)
		case core.PredExpr:
			cl.exprs = append(cl.exprs, p)
		default:
			return nil, core.ErrUnsupportedPredicate(core.ModuleStore, p)
		}
	}
	return cl, nil
}
