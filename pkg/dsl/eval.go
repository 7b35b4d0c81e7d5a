package dsl

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/feedrank/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存编译结果：expr -> *Program
	programs sync.Map
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("contract", cel.DynType),
		cel.Variable("now", cel.IntType),
		cel.CrossTypeNumericComparisons(true),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译后的质量门槛表达式，使用 CEL (Common Expression Language) 语法，可并发复用。
//
// 可用变量：
//   - contract.id / contract.creator_id / contract.outcome_type / contract.visibility
//   - contract.close_time / contract.created_time（unix 毫秒）
//   - contract.group_ids（list）
//   - contract.conversion_score / contract.freshness_score / contract.importance_score
//   - contract.view_count
//   - now（unix 毫秒）
//
// 示例：
//   - `contract.view_count >= 10`
//   - `contract.close_time - now > 3600000` → 至少还有一小时关闭
//   - `!("test" in contract.group_ids)`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；相同表达式只编译一次。
func Compile(expr string) (*Program, error) {
	if v, ok := programs.Load(expr); ok {
		return v.(*Program), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	p := &Program{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, p)
	return actual.(*Program), nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Match 对合约求值。
func (p *Program) Match(c *core.Contract, now time.Time) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"contract": contractInput(c),
		"now":      now.UnixMilli(),
	})
	if err != nil {
		// 访问不存在的字段会报错，表达式应只使用上面列出的字段
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Validate 仅编译，用于启动时校验配置。
func Validate(exprs ...string) error {
	for _, e := range exprs {
		if _, err := Compile(e); err != nil {
			return err
		}
	}
	return nil
}

func contractInput(c *core.Contract) map[string]any {
	groups := make([]string, len(c.GroupIDs))
	copy(groups, c.GroupIDs)
	return map[string]any{
		"id":               c.ID,
		"creator_id":       c.CreatorID,
		"outcome_type":     c.OutcomeType,
		"visibility":       c.Visibility,
		"close_time":       c.CloseTime.UnixMilli(),
		"created_time":     c.CreatedTime.UnixMilli(),
		"group_ids":        groups,
		"conversion_score": c.ConversionScore,
		"freshness_score":  c.FreshnessScore,
		"importance_score": c.ImportanceScore,
		"view_count":       c.ViewCount,
	}
}
