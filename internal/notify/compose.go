package notify

import (
	"fmt"
	"time"

	"babylog-backend/internal/model"
	"babylog-backend/internal/parse"
)

// PayloadData is the structured metadata attached for the receiving client.
type PayloadData struct {
	Event   string `json:"event"`
	ChildID int64  `json:"child_id"`
}

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Tag   string      `json:"tag"`
	Data  PayloadData `json:"data"`
}

var eventTitles = map[string]string{
	model.EventFeedTimerExpired:   "Feed Timer Expired",
	model.EventDiaperTimerExpired: "Diaper Timer Expired",
}

var eventNouns = map[string]string{
	model.EventFeedTimerExpired:   "feed",
	model.EventDiaperTimerExpired: "diaper",
}

// Compose builds the push payload for an expired timer. The tag is derived
// from the child and event type only, so the push platform collapses
// repeated alerts for the same still-expired timer instead of stacking
// them.
func Compose(eventType string, childID int64, childName string, elapsed time.Duration) Payload {
	title, ok := eventTitles[eventType]
	if !ok {
		title = "Timer Expired"
	}
	noun, ok := eventNouns[eventType]
	if !ok {
		noun = "activity"
	}

	return Payload{
		Title: title,
		Body:  fmt.Sprintf("%s hasn't had a %s in %s", childName, noun, parse.FormatElapsed(elapsed)),
		Tag:   fmt.Sprintf("%s-%d", eventType, childID),
		Data: PayloadData{
			Event:   eventType,
			ChildID: childID,
		},
	}
}
