package services

import (
	"context"
	"hash/fnv"
	"log"
	"math"
	"sync"
	"time"
)

// shardCount はレートリミッタのシャード数です。
// 無関係なクライアント同士がロックを取り合わないよう、キーをシャードに分散します。
const shardCount = 16

// limiterShard は1シャード分のクライアント別タイムスタンプを保持します。
type limiterShard struct {
	mu      sync.Mutex
	clients map[string][]time.Time
}

// RateLimiterService はクライアント単位のスライディングウィンドウ方式の
// レートリミッタです。同一クライアントの判定は直列化され、異なるクライアントは
// 互いにブロックしません。
type RateLimiterService struct {
	shards        [shardCount]*limiterShard
	maxRequests   int
	window        time.Duration
	enabled       bool
	sweepInterval time.Duration
}

// NewRateLimiterService 新しいレートリミッタを作成
func NewRateLimiterService(maxRequests, windowSeconds int, enabled bool) *RateLimiterService {
	s := &RateLimiterService{
		maxRequests:   maxRequests,
		window:        time.Duration(windowSeconds) * time.Second,
		enabled:       enabled,
		sweepInterval: time.Minute,
	}
	for i := range s.shards {
		s.shards[i] = &limiterShard{clients: make(map[string][]time.Time)}
	}
	if enabled {
		log.Printf("レート制限を有効化: %d requests / %ds", maxRequests, windowSeconds)
	} else {
		log.Println("レート制限は無効です")
	}
	return s
}

// MaxRequests はウィンドウあたりの最大リクエスト数を返します。
func (s *RateLimiterService) MaxRequests() int {
	return s.maxRequests
}

// Enabled はレート制限が有効かどうかを返します。
func (s *RateLimiterService) Enabled() bool {
	return s.enabled
}

// shardFor はクライアントIDに対応するシャードを返します。
func (s *RateLimiterService) shardFor(clientID string) *limiterShard {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return s.shards[h.Sum32()%shardCount]
}

// Allow はクライアントのリクエストを許可するかどうかを判定します。
// 戻り値は (許可, 残り回数, リセットまでの秒数)。
// 拒否時の残り回数は0、リセット秒数は最低1を保証します。
func (s *RateLimiterService) Allow(clientID string, now time.Time) (bool, int, int) {
	if !s.enabled {
		return true, s.maxRequests, 0
	}

	shard := s.shardFor(clientID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	windowStart := now.Add(-s.window)

	// ウィンドウ外のタイムスタンプを除去
	timestamps := shard.clients[clientID]
	pruned := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= s.maxRequests {
		shard.clients[clientID] = pruned
		// 最古のタイムスタンプがウィンドウを抜けるまでの秒数
		oldest := pruned[0]
		for _, ts := range pruned[1:] {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		resetSeconds := int(math.Ceil(oldest.Add(s.window).Sub(now).Seconds()))
		if resetSeconds < 1 {
			resetSeconds = 1
		}
		return false, 0, resetSeconds
	}

	shard.clients[clientID] = append(pruned, now)
	remaining := s.maxRequests - len(pruned) - 1
	return true, remaining, 0
}

// Cleanup はウィンドウ内にタイムスタンプを持たないクライアントを削除し、
// メモリ使用量を抑えます。
func (s *RateLimiterService) Cleanup(now time.Time) {
	windowStart := now.Add(-s.window)

	for _, shard := range s.shards {
		shard.mu.Lock()
		for clientID, timestamps := range shard.clients {
			pruned := timestamps[:0]
			for _, ts := range timestamps {
				if ts.After(windowStart) {
					pruned = append(pruned, ts)
				}
			}
			if len(pruned) == 0 {
				delete(shard.clients, clientID)
			} else {
				shard.clients[clientID] = pruned
			}
		}
		shard.mu.Unlock()
	}
}

// StartSweeper は定期クリーンアップのゴルーチンを起動します。
// ctx のキャンセルで確実に停止し、ゴルーチンリークを残しません。
func (s *RateLimiterService) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Cleanup(now)
			}
		}
	}()
}
