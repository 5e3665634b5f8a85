package models

import (
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/datex"
)

// ScheduledVaccine is one row of the canonical immunization schedule.
type ScheduledVaccine struct {
	AgeInMonths float64
	Vaccine     string
	Description string
}

// Schedule is the canonical immunization schedule. The set of vaccines in
// every MilestoneSet is fixed to this table at creation time.
var Schedule = []ScheduledVaccine{
	{0, "BCG", "Protects against tuberculosis"},
	{0, "Hepatitis B", "Birth dose against hepatitis B"},
	{1.5, "Pentavalent (1st dose)", "Diphtheria, tetanus, pertussis, Hib and hepatitis B"},
	{1.5, "Oral Polio Vaccine (1st dose)", "Protects against poliomyelitis"},
	{1.5, "Pneumococcal Conjugate Vaccine (1st dose)", "Protects against pneumonia and meningitis"},
	{2.5, "Pentavalent (2nd dose)", "Diphtheria, tetanus, pertussis, Hib and hepatitis B"},
	{2.5, "Oral Polio Vaccine (2nd dose)", "Protects against poliomyelitis"},
	{2.5, "Pneumococcal Conjugate Vaccine (2nd dose)", "Protects against pneumonia and meningitis"},
	{3.5, "Pentavalent (3rd dose)", "Diphtheria, tetanus, pertussis, Hib and hepatitis B"},
	{3.5, "Oral Polio Vaccine (3rd dose)", "Protects against poliomyelitis"},
	{3.5, "Inactivated Polio Vaccine", "Protects against poliomyelitis"},
	{3.5, "Pneumococcal Conjugate Vaccine (3rd dose)", "Protects against pneumonia and meningitis"},
	{9, "Measles, Mumps, Rubella (1st dose)", "Protects against measles, mumps and rubella"},
	{12, "Measles, Mumps, Rubella (2nd dose)", "Protects against measles, mumps and rubella"},
}

// BuildMilestones computes the milestone entries of a baby born on birthday.
// Expected dates are computed once here and never recomputed afterwards. They
// keep birthday's location, so their calendar dates are read in the zone the
// birthday was normalized in.
func BuildMilestones(birthday time.Time, now time.Time) []MilestoneData {
	out := make([]MilestoneData, 0, len(Schedule))
	for _, v := range Schedule {
		out = append(out, MilestoneData{
			AgeInMonths:  v.AgeInMonths,
			Vaccine:      v.Vaccine,
			ExpectedDate: datex.At(datex.AddMonthsFractional(birthday, v.AgeInMonths)),
			Description:  v.Description,
			UpdatedAt:    datex.At(now),
		})
	}
	return out
}

// NewMilestoneSet builds the schedule document for a freshly registered baby.
func NewMilestoneSet(id string, baby Baby, now time.Time) (MilestoneSet, error) {
	birthday, err := baby.Birthday.Time()
	if err != nil {
		return MilestoneSet{}, err
	}
	return MilestoneSet{
		ID:            id,
		BabyID:        baby.ID,
		ParentID:      baby.ParentID,
		FirstName:     baby.FirstName,
		LastName:      baby.LastName,
		CreatedAt:     datex.At(now),
		MilestoneData: BuildMilestones(birthday, now),
	}, nil
}
