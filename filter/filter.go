package filter

import (
	"time"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pkg/dsl"
)

// Facts 提供谓词求值时需要的用户侧事实（浏览、不感兴趣、关注）。
// 内存存储实现它；SQL 存储把这些谓词翻译成子查询，不需要它。
type Facts interface {
	Seen(userID, contractID string) bool
	Disinterested(userID, contractID string) bool
	Follows(userID, creatorID string) bool
}

// Match 判断合约是否满足单个谓词。
// 不认识的谓词返回 NOT_SUPPORTED。
func Match(p core.Predicate, c *core.Contract, facts Facts, now time.Time) (bool, error) {
	switch p.Name {
	case core.PredNotSeen:
		return !facts.Seen(p.UserID, c.ID), nil
	case core.PredOpen:
		return c.IsOpen(now), nil
	case core.PredPublic:
		return c.Visibility == core.VisibilityPublic, nil
	case core.PredOutcomeTypeNotIn:
		return !contains(p.Values, c.OutcomeType), nil
	case core.PredNotDisinterested:
		return !facts.Disinterested(p.UserID, c.ID), nil
	case core.PredContractNotIn:
		return !contains(p.Values, c.ID), nil
	case core.PredCreatorNotIn:
		return !contains(p.Values, c.CreatorID), nil
	case core.PredGroupNotIn:
		for _, g := range c.GroupIDs {
			if contains(p.Values, g) {
				return false, nil
			}
		}
		return true, nil
	case core.PredCreatorFollowed:
		return facts.Follows(p.UserID, c.CreatorID), nil
	case core.PredExpr:
		prg, err := dsl.Compile(p.Expr)
		if err != nil {
			return false, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, err.Error())
		}
		return prg.Match(c, now)
	default:
		return false, core.ErrUnsupportedPredicate(core.ModuleStore, p)
	}
}

// MatchAll 按顺序求值，全部满足才返回 true；遇到第一个不满足即短路。
func MatchAll(preds []core.Predicate, c *core.Contract, facts Facts, now time.Time) (bool, error) {
	for _, p := range preds {
		ok, err := Match(p, c, facts, now)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Validate 检查谓词是否都被支持，表达式是否都能编译。
func Validate(preds []core.Predicate) error {
	for _, p := range preds {
		switch p.Name {
		case core.PredNotSeen, core.PredOpen, core.PredPublic, core.PredOutcomeTypeNotIn,
			core.PredNotDisinterested, core.PredContractNotIn, core.PredCreatorNotIn,
			core.PredGroupNotIn, core.PredCreatorFollowed:
		case core.PredExpr:
			if err := dsl.Validate(p.Expr); err != nil {
				return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, err.Error())
			}
		default:
			return core.ErrUnsupportedPredicate(core.ModuleStore, p)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
