// Package store 提供 core.KeyValueStore 与 core.ContentStore 的内存 / Redis 实现。
//
// 接口定义在 core 包；SQLite 内容存储见子包 sqlstore。
//
//	var kv core.KeyValueStore = NewMemoryStore()
//	var content core.ContentStore = NewMemoryContentStore()
package store
