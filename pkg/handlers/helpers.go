package handlers

import "math"

// round2 は小数第2位に丸めます（処理時間の表示用）。
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
