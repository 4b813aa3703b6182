package activity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is the JSON shape of a single activity as returned by the
// activity listing endpoint and as stored in the local snapshot.
// Pointer fields let the decoder tell a missing field from a zero value.
type Record struct {
	Name        *string  `json:"name"`
	Distance    *float64 `json:"distance"`
	ElapsedTime *int64   `json:"elapsed_time"`
	Type        *string  `json:"type"`
	StartDate   *string  `json:"start_date"`
	Trainer     *bool    `json:"trainer"`
}

// RecordError describes a record that could not be turned into an Activity.
type RecordError struct {
	Message  string
	Original error
}

func (e *RecordError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("invalid activity record: %s: %v", e.Message, e.Original)
	}
	return fmt.Sprintf("invalid activity record: %s", e.Message)
}

func (e *RecordError) Unwrap() error {
	return e.Original
}

// DecodeRecord parses one raw JSON record into an Activity.
// Every field of Record is required.
func DecodeRecord(data []byte) (Activity, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Activity{}, &RecordError{Message: "malformed JSON", Original: err}
	}
	return rec.Activity()
}

// Activity converts the record into the typed model.
func (r Record) Activity() (Activity, error) {
	missing := []string{}
	if r.Name == nil {
		missing = append(missing, "name")
	}
	if r.Distance == nil {
		missing = append(missing, "distance")
	}
	if r.ElapsedTime == nil {
		missing = append(missing, "elapsed_time")
	}
	if r.Type == nil {
		missing = append(missing, "type")
	}
	if r.StartDate == nil {
		missing = append(missing, "start_date")
	}
	if r.Trainer == nil {
		missing = append(missing, "trainer")
	}
	if len(missing) > 0 {
		return Activity{}, &RecordError{
			Message: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		}
	}

	start, err := time.Parse(time.RFC3339, *r.StartDate)
	if err != nil {
		return Activity{}, &RecordError{Message: "start_date is not an ISO-8601 instant", Original: err}
	}

	a, err := New(*r.Name, *r.Distance, *r.ElapsedTime, *r.Type, start, *r.Trainer)
	if err != nil {
		return Activity{}, &RecordError{Message: "field out of range", Original: err}
	}
	return a, nil
}

// Record converts the activity back into its JSON shape.
func (a Activity) Record() Record {
	name := a.name
	distance := a.distance
	elapsed := a.elapsed
	category := a.category
	start := a.start.Format(time.RFC3339)
	trainer := a.trainer
	return Record{
		Name:        &name,
		Distance:    &distance,
		ElapsedTime: &elapsed,
		Type:        &category,
		StartDate:   &start,
		Trainer:     &trainer,
	}
}

// MarshalRecord encodes the activity as a raw JSON record.
func (a Activity) MarshalRecord() (json.RawMessage, error) {
	return json.Marshal(a.Record())
}
