package models

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	json "github.com/goccy/go-json"
)

// Decode converts a remote document field map into a typed record. The
// document key is injected as "id" unless the map already carries one. Every
// datex.Instant field is normalized on the way in, whichever of the remote
// timestamp, native time or string forms the store produced.
func Decode[T any](id string, data map[string]any) (T, error) {
	var out T

	fields := make(map[string]any, len(data)+1)
	for k, v := range data {
		fields[k] = v
	}
	if _, ok := fields["id"]; !ok || fields["id"] == "" {
		fields["id"] = id
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("encode document %s: %w", id, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode document %s: %w", id, err)
	}
	return out, nil
}

// Encode converts a record into a field map suitable for the remote store.
func Encode(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "id")
	return m, nil
}

// remoteMilestoneSet is the remote layout: one document per baby creation
// event with the schedule under "milestone".
type remoteMilestoneSet struct {
	ID            string          `json:"id"`
	BabyID        string          `json:"babyId"`
	ParentID      string          `json:"parentId"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	CreatedAt     datex.Instant   `json:"createdAt"`
	Milestone     []MilestoneData `json:"milestone"`
	MilestoneData []MilestoneData `json:"milestoneData"`
}

// DecodeMilestoneSet reshapes a remote milestone document into the flattened
// cache shape: entries normalized and ordered by AgeInMonths.
func DecodeMilestoneSet(id string, data map[string]any) (MilestoneSet, error) {
	raw, err := Decode[remoteMilestoneSet](id, data)
	if err != nil {
		return MilestoneSet{}, err
	}

	set := MilestoneSet{
		ID:        raw.ID,
		BabyID:    raw.BabyID,
		ParentID:  raw.ParentID,
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		CreatedAt: raw.CreatedAt,
	}

	entries := raw.Milestone
	if len(entries) == 0 {
		entries = raw.MilestoneData
	}
	set.MilestoneData = append([]MilestoneData{}, entries...)
	SortMilestones(set.MilestoneData)
	return set, nil
}

// EncodeMilestoneSet produces the remote layout of a milestone set.
func EncodeMilestoneSet(set MilestoneSet) (map[string]any, error) {
	m, err := Encode(set)
	if err != nil {
		return nil, err
	}
	m["milestone"] = m["milestoneData"]
	delete(m, "milestoneData")
	return m, nil
}

// SortMilestones orders entries by AgeInMonths, keeping schedule order within
// the same age.
func SortMilestones(ms []MilestoneData) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].AgeInMonths < ms[j].AgeInMonths
	})
}
