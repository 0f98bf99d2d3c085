package contracts

// RankedStock is one member of a TopKSet in rank order
// ⭐ SSOT: 랭킹 결과 전달
type RankedStock struct {
	Code  string  `json:"code"`
	Rank  int     `json:"rank"` // 1-based ranking
	Score float64 `json:"score"`
}

