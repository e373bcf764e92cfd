package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Node 雪花 ID 生成器；now 可注入，便于单测固定时钟
type Node struct {
	mu       sync.Mutex
	epochMS  int64
	nodeID   int64 // 0~1023
	seq      int64 // 0~4095
	lastTSMS int64
	now      func() time.Time
}

func NewNode(nodeID int64, now func() time.Time) *Node {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Node{epochMS: defaultEpoch.UnixMilli(), nodeID: nodeID, now: now}
}

var (
	defaultNode *Node
	once        sync.Once
)

func node() *Node {
	once.Do(func() { defaultNode = NewNode(1, nil) })
	return defaultNode
}

// Generate 生成一个新的雪花ID
func Generate() int64 { return node().Next() }

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID 设置 nodeID（0~1023），在 main() 初始化时调用
func SetNodeID(nodeID int64) {
	n := node()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	n.mu.Lock()
	n.nodeID = nodeID
	n.mu.Unlock()
}

func (g *Node) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UnixMilli()
	if now < g.lastTSMS {
		// 时钟回拨：沿用上一个毫秒继续发号，不阻塞调用方
		now = g.lastTSMS
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// 序列溢出，借用下一毫秒
			now = g.lastTSMS + 1
		}
	} else {
		g.seq = 0
	}
	g.lastTSMS = now

	ts := (now - g.epochMS) & (1<<41 - 1)
	return ts<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}
