package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// 轉帳會從一個 base reference 衍生出兩筆 store-level reference，
// 兩筆各自獨立受唯一索引約束
const (
	referencePrefix   = "TXN"
	transferOutSuffix = "-OUT"
	transferInSuffix  = "-IN"
)

var refCounter atomic.Uint64

// NewReference 產生碰撞機率極低的交易參考號
//
// 組成: unix-milli 時間戳 + atomic 單調計數 + 密碼學隨機後綴。
// 真正的唯一性由 store 的唯一索引保證，這裡只求 practically unique
func NewReference() string {
	var suffix [4]byte
	// crypto/rand.Read 在現代平台不會失敗；就算退化也還有 store 約束擋著
	_, _ = rand.Read(suffix[:])

	return fmt.Sprintf("%s-%d-%d-%s",
		referencePrefix,
		time.Now().UnixMilli(),
		refCounter.Add(1),
		hex.EncodeToString(suffix[:]),
	)
}

// OutboundReference 轉出方的衍生參考號
func OutboundReference(base string) string {
	return base + transferOutSuffix
}

// InboundReference 轉入方的衍生參考號
func InboundReference(base string) string {
	return base + transferInSuffix
}
