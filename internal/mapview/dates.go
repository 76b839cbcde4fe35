package mapview

import (
	"fmt"
	"time"
)

var ruMonths = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// formatRuDate renders a timestamp the way the balloon shows it:
// day, month name, hours and minutes.
func formatRuDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s, %02d:%02d", t.Day(), ruMonths[t.Month()-1], t.Hour(), t.Minute())
}
