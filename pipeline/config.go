package pipeline

import (
	"fmt"
	"sort"
)

// Config 描述个性化排序的阶段列表（YAML / koanf 均可加载）。
//
// 示例：
//
//	nodes:
//	  - type: topic.select
//	  - type: filter.build
//	  - type: recall.fanout
//	    config:
//	      sources: [topic_weighted, followed, followed_reposts, topic_reposts]
//	  - type: rerank.merge
type Config struct {
	Nodes []NodeConfig `yaml:"nodes" koanf:"nodes"`
}

// NodeConfig 是单个 Node 的配置。
type NodeConfig struct {
	Type   string         `yaml:"type" koanf:"type"`     // topic.select / filter.build / recall.fanout / rerank.merge
	Config map[string]any `yaml:"config" koanf:"config"` // Node 特定配置
}

// NodeBuilder 根据 config 构建 Node。
type NodeBuilder func(config map[string]any) (Node, error)

// NodeFactory 用于根据配置构建 Node 实例。
// 构建器通常是闭包，持有引擎注入的依赖（存储、缓存等）。
type NodeFactory struct {
	builders map[string]NodeBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{
		builders: make(map[string]NodeBuilder),
	}
}

// Register 注册 Node 构建器。
func (f *NodeFactory) Register(nodeType string, builder NodeBuilder) {
	f.builders[nodeType] = builder
}

// Types 返回已注册的类型（排序），用于错误提示。
func (f *NodeFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 根据类型和配置构建 Node。
func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s (supported: %v)", nodeType, f.Types())
	}
	return builder(config)
}

// BuildPipeline 根据配置构建 Pipeline。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	if len(c.Nodes) == 0 {
		return nil, fmt.Errorf("pipeline: no nodes configured")
	}
	nodes := make([]Node, 0, len(c.Nodes))
	for _, nc := range c.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	return &Pipeline{Nodes: nodes}, nil
}
