package filter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SeenIndex 记录用户浏览过的合约，每个用户一个布隆过滤器。
//
// 布隆过滤器可能误判（把未浏览的合约当作已浏览），不会漏判；
// 对 Feed 而言少推一个合约可以接受。
type SeenIndex struct {
	mu       sync.RWMutex
	users    map[string]*bloom.BloomFilter
	capacity uint
	fpRate   float64
}

// NewSeenIndex 创建索引。capacity 是单用户预估浏览数，fpRate 是可接受的误判率。
func NewSeenIndex(capacity uint, fpRate float64) *SeenIndex {
	if capacity == 0 {
		capacity = 10000
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.0001
	}
	return &SeenIndex{
		users:    make(map[string]*bloom.BloomFilter),
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Add 记录一次浏览。
func (s *SeenIndex) Add(userID, contractID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bf, ok := s.users[userID]
	if !ok {
		bf = bloom.NewWithEstimates(s.capacity, s.fpRate)
		s.users[userID] = bf
	}
	bf.AddString(contractID)
}

// Has 判断是否（可能）浏览过。
func (s *SeenIndex) Has(userID, contractID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bf, ok := s.users[userID]
	if !ok {
		return false
	}
	return bf.TestString(contractID)
}
