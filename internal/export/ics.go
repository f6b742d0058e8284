package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/Tih000/max/internal/models"
)

// defaultEventDuration is used for tasks that only carry a point-in-time
// deadline
const defaultEventDuration = time.Hour

// TasksToICS renders tasks with deadlines as an iCalendar document.
// Tasks without a due date are skipped, calendars only hold timed events.
func TasksToICS(chatTitle string, tasks []*models.Task) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//max-assistant//task export//EN")
	if chatTitle != "" {
		cal.SetName(chatTitle)
	}

	exported := 0
	for _, t := range tasks {
		if t.DueAt == nil {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("task-%s@max-assistant", t.ID))
		event.SetCreatedTime(t.CreatedAt)
		event.SetDtStampTime(time.Now())
		event.SetStartAt(*t.DueAt)
		event.SetEndAt(t.DueAt.Add(defaultEventDuration))
		event.SetSummary(t.Title)
		if t.Description != "" {
			event.SetDescription(t.Description)
		}
		if t.AssigneeName != "" {
			event.SetOrganizer(t.AssigneeName)
		}
		exported++
	}

	if exported == 0 {
		return "", ErrNothingToExport
	}
	return cal.Serialize(), nil
}
