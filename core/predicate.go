package core

// PredicateName 是候选过滤谓词的名称。
// 核心只声明"用哪些谓词、以什么组合"，由 ContentStore / RepostProvider 负责组合成查询。
type PredicateName string

const (
	PredNotSeen          PredicateName = "not_seen"            // 用户未浏览过（UserID）
	PredOpen             PredicateName = "open"                // close time 在未来
	PredPublic           PredicateName = "public"              // 公开可见
	PredOutcomeTypeNotIn PredicateName = "outcome_type_not_in" // 结果类型不在 Values 中
	PredNotDisinterested PredicateName = "not_disinterested"   // 用户未标记不感兴趣（UserID）
	PredContractNotIn    PredicateName = "contract_not_in"     // 合约 ID 不在 Values 中
	PredCreatorNotIn     PredicateName = "creator_not_in"      // 作者不在 Values 中
	PredGroupNotIn       PredicateName = "group_not_in"        // 不属于 Values 中任一话题
	PredCreatorFollowed  PredicateName = "creator_followed_by" // 作者被 UserID 关注
	PredExpr             PredicateName = "expr"                // CEL 表达式质量门槛（Expr）
)

// Predicate 是一个具名过滤条件。
type Predicate struct {
	Name   PredicateName `json:"name"`
	UserID string        `json:"userId,omitempty"`
	Values []string      `json:"values,omitempty"`
	Expr   string        `json:"expr,omitempty"`
}

// NotSeen 等是常用谓词的构造函数。
func NotSeen(userID string) Predicate {
	return Predicate{Name: PredNotSeen, UserID: userID}
}

func Open() Predicate { return Predicate{Name: PredOpen} }

func Public() Predicate { return Predicate{Name: PredPublic} }

func OutcomeTypeNotIn(types ...string) Predicate {
	return Predicate{Name: PredOutcomeTypeNotIn, Values: types}
}

func NotDisinterested(userID string) Predicate {
	return Predicate{Name: PredNotDisinterested, UserID: userID}
}

func ContractNotIn(ids ...string) Predicate {
	return Predicate{Name: PredContractNotIn, Values: ids}
}

func CreatorNotIn(ids ...string) Predicate {
	return Predicate{Name: PredCreatorNotIn, Values: ids}
}

func GroupNotIn(ids ...string) Predicate {
	return Predicate{Name: PredGroupNotIn, Values: ids}
}

func CreatorFollowedBy(userID string) Predicate {
	return Predicate{Name: PredCreatorFollowed, UserID: userID}
}

func Expr(expr string) Predicate {
	return Predicate{Name: PredExpr, Expr: expr}
}

// ErrUnsupportedPredicate 返回存储不认识的谓词错误。
func ErrUnsupportedPredicate(module string, p Predicate) *DomainError {
	return NewDomainError(module, ErrorCodeNotSupported, "unsupported predicate: "+string(p.Name))
}
