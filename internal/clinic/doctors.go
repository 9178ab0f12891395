// Package clinic holds the clinic's doctor directory and the aggregate
// stats surface consumed by the admin dashboard.
package clinic

import "strings"

// Doctor describes a practitioner and the treatments they take bookings for.
type Doctor struct {
	ID         string
	Name       string
	Treatments []string
	CalendarID string
}

// Directory resolves doctors and their calendars.
type Directory struct {
	doctors []Doctor
	byID    map[string]*Doctor
}

// NewDirectory builds a directory, attaching calendar ids from the supplied
// doctor-id → calendar-id map.
func NewDirectory(doctors []Doctor, calendars map[string]string) *Directory {
	d := &Directory{
		doctors: make([]Doctor, len(doctors)),
		byID:    make(map[string]*Doctor, len(doctors)),
	}
	copy(d.doctors, doctors)
	for i := range d.doctors {
		doc := &d.doctors[i]
		if cal, ok := calendars[doc.ID]; ok {
			doc.CalendarID = cal
		}
		d.byID[doc.ID] = doc
	}
	return d
}

// DefaultDoctors is the clinic's current roster.
func DefaultDoctors() []Doctor {
	return []Doctor{
		{
			ID:         "jason",
			Name:       "Dr. Jason P. Matthew",
			Treatments: []string{"Rhinoplasty", "Facelift", "Lip Fillers"},
		},
		{
			ID:         "elizabeth",
			Name:       "Dr. Elizabeth Sorkin",
			Treatments: []string{"Upper Arm Lift", "Tummy Tuck"},
		},
	}
}

// Lookup returns the doctor with the given id, or nil.
func (d *Directory) Lookup(doctorID string) *Doctor {
	return d.byID[strings.ToLower(strings.TrimSpace(doctorID))]
}

// CalendarID resolves the external calendar for a doctor. ok is false when
// the doctor is unknown or has no calendar configured.
func (d *Directory) CalendarID(doctorID string) (string, bool) {
	doc := d.Lookup(doctorID)
	if doc == nil || doc.CalendarID == "" {
		return "", false
	}
	return doc.CalendarID, true
}

// ByTreatment returns the first doctor offering the given treatment, or nil.
func (d *Directory) ByTreatment(treatment string) *Doctor {
	want := strings.ToLower(strings.TrimSpace(treatment))
	for i := range d.doctors {
		for _, tr := range d.doctors[i].Treatments {
			if strings.ToLower(tr) == want {
				return &d.doctors[i]
			}
		}
	}
	return nil
}

// All returns the roster in directory order.
func (d *Directory) All() []Doctor {
	out := make([]Doctor, len(d.doctors))
	copy(out, d.doctors)
	return out
}
