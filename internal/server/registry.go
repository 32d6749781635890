package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("会话不存在")

// SessionInfo 一个玩家会话
type SessionInfo struct {
	ID             string
	PlayerID       int32
	Name           string
	CreatedAt      time.Time
	Connected      bool
	DisconnectedAt time.Time
}

// SessionRegistry 会话表，加入时创建，玩家最终离开时删除
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionInfo
	byPlayer map[int32]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*SessionInfo),
		byPlayer: make(map[int32]string),
	}
}

// Create 为玩家创建新会话，替换该玩家已有的会话
func (r *SessionRegistry) Create(playerID int32, name string) SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byPlayer[playerID]; ok {
		delete(r.sessions, old)
	}
	info := &SessionInfo{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Name:      name,
		CreatedAt: time.Now(),
		Connected: true,
	}
	r.sessions[info.ID] = info
	r.byPlayer[playerID] = info.ID
	return *info
}

func (r *SessionRegistry) Get(id string) (SessionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, ErrSessionNotFound
	}
	return *info, nil
}

func (r *SessionRegistry) ByPlayer(playerID int32) (SessionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPlayer[playerID]
	if !ok {
		return SessionInfo{}, ErrSessionNotFound
	}
	return *r.sessions[id], nil
}

// SetConnected 记录断线或重连
func (r *SessionRegistry) SetConnected(id string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	info.Connected = connected
	if connected {
		info.DisconnectedAt = time.Time{}
	} else {
		info.DisconnectedAt = time.Now()
	}
	return nil
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if r.byPlayer[info.PlayerID] == id {
		delete(r.byPlayer, info.PlayerID)
	}
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List 按玩家 ID 排序的会话快照
func (r *SessionRegistry) List() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, info := range r.sessions {
		out = append(out, *info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}
