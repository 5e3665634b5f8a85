package services

import (
	"sort"

	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
)

// decodeAll decodes every document; the result is ordered by id and never nil.
func decodeAll[T any](docs []remote.Document, id func(T) string) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := models.Decode[T](d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sortByID(out, id)
	return out, nil
}

func sortByID[T any](list []T, id func(T) string) {
	sort.SliceStable(list, func(i, j int) bool { return id(list[i]) < id(list[j]) })
}

// upsert replaces the element with item's id or appends item, keeping the
// list ordered by id.
func upsert[T any](list []T, item T, id func(T) string) []T {
	out := make([]T, 0, len(list)+1)
	replaced := false
	for _, v := range list {
		if id(v) == id(item) {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, v)
	}
	if !replaced {
		out = append(out, item)
	}
	sortByID(out, id)
	return out
}

func removeByID[T any](list []T, target string, id func(T) string) []T {
	out := make([]T, 0, len(list))
	for _, v := range list {
		if id(v) != target {
			out = append(out, v)
		}
	}
	return out
}

func userKey(u models.User) string                 { return u.ID }
func babyKey(b models.Baby) string                 { return b.ID }
func setKey(m models.MilestoneSet) string          { return m.ID }
func appointmentKey(a models.Appointment) string   { return a.ID }
func notificationKey(n models.Notification) string { return n.ID }
