package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
)

// FormatDateTime форматирует дату и время
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

func title(kind model.SessionKind) string {
	switch kind {
	case model.SessionKindBooked:
		return "✅ Встреча забронирована"
	case model.SessionKindSummon:
		return "❗️ Обязательная встреча"
	case model.SessionKindCanceled:
		return "❌ Встреча отменена"
	case model.SessionKindReminder:
		return "⏰ Напоминание о встрече"
	}
	return "📅 Встреча"
}

// FormatSummary builds the HTML message body sent to participants.
func FormatSummary(s model.SessionSummary, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	start := s.Start.In(loc)
	end := s.End.In(loc)

	var b strings.Builder
	b.WriteString("<b>" + title(s.Kind) + "</b>\n\n")
	fmt.Fprintf(&b, "📅 %s\n", start.Format("02.01.2006"))
	fmt.Fprintf(&b, "🕐 %s (%s)\n", FormatTimeRange(start, end), FormatDuration(int(end.Sub(start).Minutes())))

	if s.MeetingURL != "" && s.Kind != model.SessionKindCanceled {
		fmt.Fprintf(&b, "🔗 %s\n", html.EscapeString(s.MeetingURL))
	}
	if note := strings.TrimSpace(s.Note); note != "" {
		fmt.Fprintf(&b, "\n📝 %s\n", html.EscapeString(note))
	}

	return b.String()
}
