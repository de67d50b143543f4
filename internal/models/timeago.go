package models

import (
	"fmt"
	"time"
)

// TimeAgo renders the distance between t and now the way the app shows it
// under each post, e.g. "5 minutos atrás".
func TimeAgo(t, now time.Time) string {
	secs := int(now.Sub(t).Seconds())
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return plural(secs, "segundo", "segundos")
	}
	mins := secs / 60
	if mins < 60 {
		return plural(mins, "minuto", "minutos")
	}
	hours := mins / 60
	if hours < 24 {
		return plural(hours, "hora", "horas")
	}
	days := hours / 24
	if days < 30 {
		return plural(days, "dia", "dias")
	}
	months := days / 30
	if months < 12 {
		return plural(months, "mês", "meses")
	}
	return plural(months/12, "ano", "anos")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s atrás", n, one)
	}
	return fmt.Sprintf("%d %s atrás", n, many)
}
