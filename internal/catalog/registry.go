package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Facility maps a user-facing facility name to the upstream booking product.
// CourtID is the court a past booking succeeded on; it is a best-effort
// starting point for the cached selection strategy, never authoritative.
type Facility struct {
	Name      string
	ProductID string
	CourtID   string
}

// Registry is the typed facility table. It ships with the known products
// and can be extended from config.
type Registry struct {
	mu     sync.Mutex
	byName map[string]Facility
}

// The stock table mirrors the products exposed by the booking site. Court
// IDs are discovered per attempt; ARC_MP1's is stable enough to pre-seed.
var builtin = []Facility{
	{Name: "ARC_GYM_2_VOLLEYBALL_COURTS", ProductID: "ae779f17-f3a2-4758-be2a-9670cf64fcdf"},
	{Name: "ARC_MP1", ProductID: "b005129c-6510-4b20-8658-3d1570b4c0c2", CourtID: "547b9b68-bf48-4dab-9a64-23deed1a99df"},
	{Name: "ARC_MP2", ProductID: "6aea73d7-baac-47b2-9689-f66b04ced0d8"},
	{Name: "ARC_MP3_TABLE_TENNIS_ONLY", ProductID: "49f02e87-c344-4087-a691-ac0f2f6a73da"},
	{Name: "ARC_MP4", ProductID: "9ca0d0d2-28b3-429b-91bb-2a45c0dbd0d6"},
	{Name: "ARC_MP5", ProductID: "075efde4-a683-4db2-9e3c-a27e0ad387da"},
	{Name: "ARC_PICKLEBALL_BADMINTON", ProductID: "1c288a93-2323-4d2f-a4fb-61e1f86b5c42"},
	{Name: "ARC_RACQUETBALL_TABLE_TENNIS", ProductID: "87656121-9423-4007-bff5-25a69e8d74db"},
	{Name: "ARC_REFLECTION_RECOVERY_ROOM", ProductID: "4a16f0b3-6859-470b-a750-9d705cc6bf32"},
	{Name: "ARC_SQUASH_COURTS", ProductID: "f874ef0c-d088-4e1b-84d6-e7c1f0d1940c"},
	{Name: "CRCE_MP1", ProductID: "d56445b6-20fb-49bc-bf60-d57189aceb78"},
	{Name: "CRCE_MP2", ProductID: "966316d6-bffc-42f0-b2c6-a6cad53f9c42"},
	{Name: "CRCE_RACQUETBALL", ProductID: "56a2c9df-63c7-421b-9fcc-f5305e80d961"},
	{Name: "CRCE_SQUASH_RB_MP_COURT", ProductID: "caf86dbf-3395-435b-a646-6ae8de13675f"},
	{Name: "ICE_ARENA_FREESTYLE_SKATING", ProductID: "d2353cb4-0992-4074-85a7-b9e2645a945f"},
}

func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Facility, len(builtin))}
	for _, f := range builtin {
		r.byName[canonical(f.Name)] = f
	}
	return r
}

// canonical folds a facility name for lookup. Config loaders lowercase map
// keys, so names are matched case-insensitively against the stock table.
func canonical(name string) string {
	return strings.ToUpper(name)
}

func (r *Registry) Lookup(name string) (Facility, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byName[canonical(name)]
	return f, ok
}

// Add registers or overrides a facility. Used to merge config-supplied
// products into the stock table; an override keeps the remembered court.
func (r *Registry) Add(name, productID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := canonical(name)
	f := r.byName[key]
	f.Name = key
	f.ProductID = productID
	r.byName[key] = f
}

// RememberCourt records the court a booking just succeeded on.
func (r *Registry) RememberCourt(name, courtID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := canonical(name)
	f, ok := r.byName[key]
	if !ok {
		return
	}
	f.CourtID = courtID
	r.byName[key] = f
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
