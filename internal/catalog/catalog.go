// Package catalog resolves facilities to their interchangeable courts and
// per-day slot listings. Pure queries over the booking site; nothing here
// is cached across attempts because courts and windows change between
// checks.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/court-scheduler/internal/campusrec"
)

// Slot is re-exported so callers do not need to import the wire client.
type Slot = campusrec.Slot

var (
	ErrUnknownFacility = errors.New("catalog: unknown facility")
	// ErrNoCourts means discovery found nothing. Per the lookup contract
	// that is an upstream-format or auth problem, not an empty facility.
	ErrNoCourts = errors.New("catalog: no courts discovered")
)

// Client is the slice of the campusrec API the catalog consumes.
type Client interface {
	FacilityIDs(ctx context.Context, productID string) ([]string, error)
	Slots(ctx context.Context, productID, facilityID string, date time.Time) ([]Slot, error)
	Reserve(ctx context.Context, productID, facilityID string, s Slot, date time.Time) (campusrec.ReserveResult, error)
	Probe(ctx context.Context, productID string) error
	Warm(ctx context.Context)
}

type Catalog struct {
	Client Client
	Reg    *Registry
}

func New(client Client, reg *Registry) *Catalog {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Catalog{Client: client, Reg: reg}
}

func (c *Catalog) Facility(name string) (Facility, error) {
	f, ok := c.Reg.Lookup(name)
	if !ok {
		return Facility{}, fmt.Errorf("%w: %s", ErrUnknownFacility, name)
	}
	return f, nil
}

// ListCourts resolves the interchangeable court IDs backing a facility.
// Always a fresh lookup; courts can be added or removed upstream.
func (c *Catalog) ListCourts(ctx context.Context, f Facility) ([]string, error) {
	ids, err := c.Client.FacilityIDs(ctx, f.ProductID)
	if errors.Is(err, campusrec.ErrNoFacilityIDs) {
		return nil, fmt.Errorf("%w for %s: %v", ErrNoCourts, f.Name, err)
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListSlots returns the bookable windows for one court on one day, in
// upstream order, already filtered to enabled entries.
func (c *Catalog) ListSlots(ctx context.Context, f Facility, courtID string, date time.Time) ([]Slot, error) {
	return c.Client.Slots(ctx, f.ProductID, courtID, date)
}

// Reserve claims a slot on a court and returns the upstream booking
// reference. A rejection comes back as an error.
func (c *Catalog) Reserve(ctx context.Context, f Facility, courtID string, s Slot, date time.Time) (string, error) {
	res, err := c.Client.Reserve(ctx, f.ProductID, courtID, s, date)
	if err != nil {
		return "", err
	}
	return res.ParticipantID, nil
}

func (c *Catalog) RememberCourt(name, courtID string) {
	c.Reg.RememberCourt(name, courtID)
}

func (c *Catalog) Warm(ctx context.Context) {
	c.Client.Warm(ctx)
}

// Availability summarizes one time window across every court of a facility.
type Availability struct {
	Label       string
	Courts      int
	TotalCourts int
	Sample      Slot
}

// AggregateSlots merges per-court listings into one availability view,
// sorted by label. Courts that fail to answer are skipped rather than
// failing the whole query.
func (c *Catalog) AggregateSlots(ctx context.Context, f Facility, date time.Time) ([]Availability, error) {
	courts, err := c.ListCourts(ctx, f)
	if err != nil {
		return nil, err
	}

	byLabel := make(map[string]*Availability)
	for _, courtID := range courts {
		slots, err := c.ListSlots(ctx, f, courtID, date)
		if err != nil {
			continue
		}
		for _, s := range slots {
			av, ok := byLabel[s.Label]
			if !ok {
				av = &Availability{Label: s.Label, TotalCourts: len(courts), Sample: s}
				byLabel[s.Label] = av
			}
			av.Courts++
		}
	}

	out := make([]Availability, 0, len(byLabel))
	for _, av := range byLabel {
		out = append(out, *av)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}
