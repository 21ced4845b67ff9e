package textenc

import (
	"fmt"
	"time"
)

// RFC3339Date は時刻をAtomで使用するRFC 3339形式に整形する。
// UTCの時刻は末尾に "Z" を付け、それ以外は "+09:00" 形式のオフセットを付ける。
func RFC3339Date(t time.Time) string {
	base := t.Format("2006-01-02T15:04:05")
	if t.Location() == time.UTC {
		return base + "Z"
	}
	return base + formatOffset(t, true)
}

// RFC2822Date は時刻をRSS 2.0で使用するRFC 2822形式に整形する。
// UTCの時刻はオフセット "-0000" を付ける。
func RFC2822Date(t time.Time) string {
	base := t.Format("Mon, 02 Jan 2006 15:04:05 ")
	if t.Location() == time.UTC {
		return base + "-0000"
	}
	return base + formatOffset(t, false)
}

func formatOffset(t time.Time, colon bool) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	if colon {
		return fmt.Sprintf("%c%02d:%02d", sign, hours, minutes)
	}
	return fmt.Sprintf("%c%02d%02d", sign, hours, minutes)
}
