package utils

import "fmt"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// HumanizeBytes formats a byte count into a readable string, e.g. 1536 -> "1.50 KB".
func HumanizeBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}
