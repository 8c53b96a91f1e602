// Package store persists computed settings per track in a badger database.
//
// Keys:
//
//	settings/<trackID>/<kind>   JSON record of one settings kind
//	fingerprint/<hex>           trackID last saved for that audio fingerprint
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when nothing was saved under the requested key.
var ErrNotFound = errors.New("settings not found")

// Kind names a settings record.
type Kind string

const (
	KindMix           Kind = "mix"
	KindMaster        Kind = "master"
	KindNormalisation Kind = "normalisation"
)

// ComputedSettings carries whichever settings an operation produced.
// Nil fields are not written.
type ComputedSettings struct {
	Mix           *processor.MixSettings
	Master        *processor.MasterSettings
	Normalisation *processor.NormalisationPlan
}

// Provenance records which operation produced a settings record.
type Provenance struct {
	Operation   string    `json:"operation"`
	Genre       string    `json:"genre,omitempty"`
	Intensity   float64   `json:"intensity,omitempty"` // 0-1
	Fingerprint uint64    `json:"fingerprint,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

type record struct {
	Provenance Provenance      `json:"provenance"`
	Settings   json.RawMessage `json:"settings"`
}

// Store is a badger-backed SettingsStore.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates the database in dir. A nil logger silences badger.
func Open(dir string, logger logrus.FieldLogger) (*Store, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory(logger logrus.FieldLogger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger logrus.FieldLogger) (*Store, error) {
	if logger != nil {
		opts = opts.WithLogger(logger.WithField("component", "badger"))
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fault.Unavailable("settings store", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func settingsKey(trackID string, kind Kind) []byte {
	return []byte("settings/" + trackID + "/" + string(kind))
}

func fingerprintKey(fp uint64) []byte {
	return []byte("fingerprint/" + strconv.FormatUint(fp, 16))
}

// SaveComputedSettings writes every non-nil settings kind in one batch.
func (s *Store) SaveComputedSettings(ctx context.Context, trackID string, settings ComputedSettings, prov Provenance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if trackID == "" {
		return fault.Input("empty track id")
	}
	if prov.SavedAt.IsZero() {
		prov.SavedAt = s.now().UTC()
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	put := func(kind Kind, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s settings: %w", kind, err)
		}
		val, err := json.Marshal(record{Provenance: prov, Settings: raw})
		if err != nil {
			return fmt.Errorf("encode %s record: %w", kind, err)
		}
		return wb.Set(settingsKey(trackID, kind), val)
	}

	if settings.Mix != nil {
		if err := put(KindMix, settings.Mix); err != nil {
			return err
		}
	}
	if settings.Master != nil {
		if err := put(KindMaster, settings.Master); err != nil {
			return err
		}
	}
	if settings.Normalisation != nil {
		if err := put(KindNormalisation, settings.Normalisation); err != nil {
			return err
		}
	}
	if prov.Fingerprint != 0 {
		if err := wb.Set(fingerprintKey(prov.Fingerprint), []byte(trackID)); err != nil {
			return err
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("save settings for %s: %w", trackID, err)
	}
	return nil
}

// load decodes one settings kind into dst.
func (s *Store) load(ctx context.Context, trackID string, kind Kind, dst any) (Provenance, error) {
	if err := ctx.Err(); err != nil {
		return Provenance{}, err
	}

	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(settingsKey(trackID, kind))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Provenance{}, fmt.Errorf("%s %s: %w", trackID, kind, ErrNotFound)
	}
	if err != nil {
		return Provenance{}, fmt.Errorf("load %s %s: %w", trackID, kind, err)
	}

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Provenance{}, fmt.Errorf("decode %s %s: %w", trackID, kind, err)
	}
	if err := json.Unmarshal(rec.Settings, dst); err != nil {
		return Provenance{}, fmt.Errorf("decode %s %s settings: %w", trackID, kind, err)
	}
	return rec.Provenance, nil
}

// LoadMix returns the last mix settings saved for trackID.
func (s *Store) LoadMix(ctx context.Context, trackID string) (processor.MixSettings, Provenance, error) {
	var mix processor.MixSettings
	prov, err := s.load(ctx, trackID, KindMix, &mix)
	return mix, prov, err
}

// LoadMaster returns the last master settings saved for trackID.
func (s *Store) LoadMaster(ctx context.Context, trackID string) (processor.MasterSettings, Provenance, error) {
	var master processor.MasterSettings
	prov, err := s.load(ctx, trackID, KindMaster, &master)
	return master, prov, err
}

// LoadNormalisation returns the last normalisation plan saved for trackID.
// The plan's filter descriptor is not stored; FilterSpec carries it.
func (s *Store) LoadNormalisation(ctx context.Context, trackID string) (processor.NormalisationPlan, Provenance, error) {
	var plan processor.NormalisationPlan
	prov, err := s.load(ctx, trackID, KindNormalisation, &plan)
	return plan, prov, err
}

// TrackForFingerprint returns the track last saved with fingerprint fp.
func (s *Store) TrackForFingerprint(ctx context.Context, fp uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var trackID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fingerprintKey(fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			trackID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("fingerprint %x: %w", fp, ErrNotFound)
	}
	return trackID, err
}
