package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
	"github.com/google/uuid"
)

type AppointmentService struct {
	store remote.Store
	cache *cache.Cache
	log   logging.Logger
	now   func() time.Time
	newID func() string
}

func NewAppointmentService(store remote.Store, c *cache.Cache, log logging.Logger) *AppointmentService {
	return &AppointmentService{store: store, cache: c, log: log, now: time.Now, newID: uuid.NewString}
}

// Request creates a pending appointment for baby.
func (s *AppointmentService) Request(ctx context.Context, parent models.User, baby models.Baby, vaccine string, at time.Time) (models.Appointment, error) {
	now := s.now()
	a := models.Appointment{
		ID:            s.newID(),
		ParentID:      parent.ID,
		ParentName:    fmt.Sprintf("%s %s", parent.FirstName, parent.LastName),
		BabyFirstName: baby.FirstName,
		BabyLastName:  baby.LastName,
		Vaccine:       vaccine,
		ScheduleDate:  datex.At(at),
		Status:        models.StatusPending,
		CreatedAt:     datex.At(now),
		UpdatedAt:     datex.At(now),
	}

	data, err := models.Encode(a)
	if err != nil {
		return models.Appointment{}, err
	}
	if err := s.store.Put(ctx, remote.Appointments, a.ID, data); err != nil {
		return models.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	return a, cache.Modify(ctx, s.cache, cache.Appointments, func(list *[]models.Appointment) error {
		*list = upsert(*list, a, appointmentKey)
		return nil
	})
}

// Complete moves an appointment to history. The matching milestone becomes
// received and the administration is appended to the baby's card. All three
// records are written remotely and then back to the cache. Completing an
// appointment that is already in history does nothing, and a retry after a
// partial failure never records the same administration twice.
func (s *AppointmentService) Complete(ctx context.Context, appointmentID, remarks string) error {
	a, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if a.Status == models.StatusHistory {
		return nil
	}
	now := s.now()

	baby, err := s.findBaby(ctx, a)
	if err != nil {
		return err
	}

	sets, err := s.milestoneSets(ctx, a.ParentID, baby.ID)
	if err != nil {
		return err
	}
	for i := range sets {
		for j := range sets[i].MilestoneData {
			m := &sets[i].MilestoneData[j]
			if m.Vaccine == a.Vaccine {
				m.Received = true
				m.UpdatedAt = datex.At(now)
			}
		}
		data, err := models.EncodeMilestoneSet(sets[i])
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, remote.Milestones, sets[i].ID, map[string]any{"milestone": data["milestone"]}); err != nil {
			return fmt.Errorf("update milestones: %w", err)
		}
	}

	if card, added := appendAdministration(baby.Card, a, now, remarks, s.newID); added {
		baby.Card = card
		cardData, err := models.Encode(baby)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, remote.Babies, baby.ID, map[string]any{"card": cardData["card"]}); err != nil {
			return fmt.Errorf("update card: %w", err)
		}
	}

	a.Status = models.StatusHistory
	a.UpdatedAt = datex.At(now)
	if err := s.store.Update(ctx, remote.Appointments, a.ID, map[string]any{
		"status":    string(a.Status),
		"updatedAt": a.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}

	return s.writeBack(ctx, a, baby, sets)
}

// Delete removes a pending or upcoming appointment. Milestones are never
// touched.
func (s *AppointmentService) Delete(ctx context.Context, appointmentID string) error {
	a, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if a.Status != models.StatusPending && a.Status != models.StatusUpcoming {
		return fmt.Errorf("%w: status %s", ErrAppointmentNotDeletable, a.Status)
	}
	if err := s.store.Delete(ctx, remote.Appointments, a.ID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return cache.Modify(ctx, s.cache, cache.Appointments, func(list *[]models.Appointment) error {
		*list = removeByID(*list, a.ID, appointmentKey)
		return nil
	})
}

func (s *AppointmentService) getAppointment(ctx context.Context, id string) (models.Appointment, error) {
	doc, err := s.store.Get(ctx, remote.Appointments, id)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return models.Decode[models.Appointment](doc.ID, doc.Data)
}

func (s *AppointmentService) findBaby(ctx context.Context, a models.Appointment) (models.Baby, error) {
	docs, err := s.store.Fetch(ctx, remote.Babies, remote.Where("parentId", a.ParentID))
	if err != nil {
		return models.Baby{}, fmt.Errorf("fetch babies: %w", err)
	}
	babies, err := decodeAll(docs, babyKey)
	if err != nil {
		return models.Baby{}, err
	}
	for _, b := range babies {
		if b.Matches(a.BabyFirstName, a.BabyLastName) {
			return b, nil
		}
	}
	return models.Baby{}, fmt.Errorf("%w: %s %s", ErrUnknownBaby, a.BabyFirstName, a.BabyLastName)
}

func (s *AppointmentService) milestoneSets(ctx context.Context, parentID, babyID string) ([]models.MilestoneSet, error) {
	docs, err := s.store.Fetch(ctx, remote.Milestones, remote.Where("babyId", babyID))
	if err != nil {
		return nil, fmt.Errorf("fetch milestones: %w", err)
	}
	sets, err := decodeMilestoneSets(docs)
	if err != nil {
		return nil, err
	}
	out := sets[:0]
	for _, set := range sets {
		if set.ParentID == parentID {
			out = append(out, set)
		}
	}
	return out, nil
}

func (s *AppointmentService) writeBack(ctx context.Context, a models.Appointment, baby models.Baby, sets []models.MilestoneSet) error {
	if err := cache.Modify(ctx, s.cache, cache.Appointments, func(list *[]models.Appointment) error {
		*list = upsert(*list, a, appointmentKey)
		return nil
	}); err != nil {
		return err
	}
	if err := cache.Modify(ctx, s.cache, cache.Babies, func(list *[]models.Baby) error {
		*list = upsert(*list, baby, babyKey)
		return nil
	}); err != nil {
		return err
	}
	return cache.Modify(ctx, s.cache, cache.Milestones, func(list *[]models.MilestoneSet) error {
		for _, set := range sets {
			*list = upsert(*list, set, setKey)
		}
		return nil
	})
}

// appendAdministration records the dose given at appointment a on the card
// entry of its vaccine, creating the entry when the vaccine was never given.
// It reports false and leaves card as is when a is already recorded.
func appendAdministration(card []models.CardEntry, a models.Appointment, at time.Time, remarks string, newID func() string) ([]models.CardEntry, bool) {
	for _, e := range card {
		if slices.Contains(e.AppointmentIDs, a.ID) {
			return card, false
		}
	}

	out := append([]models.CardEntry{}, card...)
	for i := range out {
		if out[i].VaccineName == a.Vaccine {
			out[i].Doses++
			out[i].Date = append(slices.Clone(out[i].Date), datex.At(at))
			out[i].Remarks = append(slices.Clone(out[i].Remarks), remarks)
			out[i].AppointmentIDs = append(slices.Clone(out[i].AppointmentIDs), a.ID)
			return out, true
		}
	}
	return append(out, models.CardEntry{
		ID:             newID(),
		VaccineName:    a.Vaccine,
		Doses:          1,
		Date:           []datex.Instant{datex.At(at)},
		Remarks:        []string{remarks},
		AppointmentIDs: []string{a.ID},
	}), true
}
