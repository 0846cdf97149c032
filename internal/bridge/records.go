package bridge

import (
	"sort"
	"sync"

	"github.com/foraone/fora-contrib-app-miio/internal/directory"
)

// RecordStore is the in-memory registry of device records known to the
// directory, keyed by device type id (the transport's device identifier).
//
// The store holds the directory snapshot of the current configuration
// epoch plus any locally created pending records. A reload replaces the
// whole set; pending records are confirmed only by the next reload
// re-fetching them with directory-assigned ids.
//
// Thread Safety: all methods are safe for concurrent use.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*directory.DeviceRecord
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]*directory.DeviceRecord),
	}
}

// Replace swaps the whole record set for a fresh directory snapshot.
// Pending records from the previous epoch are discarded: if their
// registration succeeded the snapshot contains them, and if it failed the
// next discovery pass re-registers them.
func (s *RecordStore) Replace(records []directory.DeviceRecord) {
	fresh := make(map[string]*directory.DeviceRecord, len(records))
	for i := range records {
		rec := records[i]
		fresh[rec.General.Type] = &rec
	}

	s.mu.Lock()
	s.records = fresh
	s.mu.Unlock()
}

// Get returns a copy of the record for a device type id.
func (s *RecordStore) Get(deviceTypeID string) (directory.DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[deviceTypeID]
	if !ok {
		return directory.DeviceRecord{}, false
	}
	return *rec, true
}

// InsertPending inserts a locally created record with IsRegistering set,
// unless a record for the same device type id already exists.
//
// The check and the insert happen under one lock: this is the single-writer
// guarantee that keeps registration at-most-once when discovery re-announces
// a device while its registration request is still in flight.
//
// Returns false when a record already existed (nothing inserted).
func (s *RecordStore) InsertPending(record directory.DeviceRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.General.Type]; exists {
		return false
	}

	record.IsRegistering = true
	s.records[record.General.Type] = &record
	return true
}

// DatapointID resolves the directory-assigned id for a canonical datapoint
// name within a device record. Returns false when the record is unknown,
// the name is unknown, or the record is still pending (no ids assigned yet).
func (s *RecordStore) DatapointID(deviceTypeID, name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[deviceTypeID]
	if !ok {
		return "", false
	}
	for i := range rec.Datapoints {
		if rec.Datapoints[i].Name == name {
			id := rec.Datapoints[i].ID
			return id, id != ""
		}
	}
	return "", false
}

// Snapshot returns a copy of all records, ordered by device type id.
func (s *RecordStore) Snapshot() []directory.DeviceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]directory.DeviceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].General.Type < out[j].General.Type
	})
	return out
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
