package mgo

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"PPChat/data/database/mgo/mongoutil"
	"PPChat/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrNotReady = errors.New("mongo not ready")

// Manager 持有当前 mongo 连接：后台连接、健康检查、掉线重连
type Manager struct {
	cfg *mongoutil.Config

	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

func NewManager(cfg *mongoutil.Config) *Manager {
	return &Manager{cfg: cfg, readyCh: make(chan struct{})}
}

// StartAsync 一直运行到 ctx.Done()；首次连上时 close readyCh，后续掉线会自动重连
func (m *Manager) StartAsync(ctx context.Context) {
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	const (
		baseBackoff = 200 * time.Millisecond
		maxBackoff  = 5 * time.Second
		healthEvery = 10 * time.Second // 健康检查周期
		failThresh  = 3                // 连续失败阈值
	)

	for {
		// ===== 连接阶段（带退避重试） =====
		attempt := 0
		for {
			if ctx.Err() != nil {
				return
			}
			cli, err := mongoutil.NewMongoDB(ctx, m.cfg)
			if err == nil {
				m.mu.Lock()
				m.client = cli
				m.mu.Unlock()
				m.readyOnce.Do(func() { close(m.readyCh) })
				logger.Info("[Mongo] connected", zap.String("db", m.cfg.Database))
				break
			}
			m.lastErr.Store(err)
			logger.Warn("[Mongo] connect failed", zap.Int("attempt", attempt), zap.Error(err))

			backoff := baseBackoff << attempt
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			jitter := time.Duration(rand.Int63n(int64(backoff / 5))) // 0~20%
			if !sleepCtx(ctx, backoff-jitter/2) {
				return
			}
			if attempt < 6 {
				attempt++
			}
		}

		// ===== 健康检查阶段（保持/掉线→重连）=====
		if !m.watch(ctx, healthEvery, failThresh) {
			return
		}
	}
}

// watch returns false when ctx is done, true when the connection was dropped
// and the caller should reconnect.
func (m *Manager) watch(ctx context.Context, every time.Duration, failThresh int) bool {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	fail := 0
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return false
		case <-ticker.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()
			if c == nil {
				return true
			}
			if err := c.GetDB().Client().Ping(ctx, nil); err != nil {
				fail++
				m.lastErr.Store(err)
				if fail >= failThresh {
					logger.Warn("[Mongo] health check failed, reconnecting", zap.Error(err))
					m.drop()
					return true
				}
			} else {
				fail = 0
			}
		}
	}
}

func (m *Manager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Ready 首次连接成功时会 close；可 select 等待
func (m *Manager) Ready() <-chan struct{} {
	return m.readyCh
}

// Err 最近一次错误
func (m *Manager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// GetDB panics before the first successful connect; call WaitReady first.
func (m *Manager) GetDB() *mongo.Database {
	db, ok := m.TryGetDB()
	if !ok {
		panic("Mongo not ready: wait Ready() or use TryGetDB()")
	}
	return db
}

func (m *Manager) TryGetDB() (*mongo.Database, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, false
	}
	return m.client.GetDB(), true
}

func (m *Manager) WaitReady(ctx context.Context) error {
	if _, ok := m.TryGetDB(); ok {
		return nil
	}
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if err := m.Err(); err != nil {
			return errors.Join(ErrNotReady, err)
		}
		return ErrNotReady
	}
}

// Ping is used by the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	db, ok := m.TryGetDB()
	if !ok {
		return ErrNotReady
	}
	return db.Client().Ping(ctx, nil)
}
