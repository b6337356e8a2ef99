// Package flowstore implements the Configuration Store (§4.1): load-on-
// startup plus mtime-based hot reload of the IVR flow, WebAPI endpoint
// catalog, extension map, and recording-type map, with atomic publish-
// after-validate semantics. Grounded on the teacher's file-loading shape in
// internal/trconfig (stat + read + json.Unmarshal) and its debounced
// fsnotify watcher in internal/ingest/watcher.go, generalized from a single
// audio-metadata feed to four independently-reloadable logical documents.
package flowstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/flowvalidate"
	"github.com/voxswitch/ivr-engine/internal/model"
)

// Logical document names, used as keys to Get/Reload and as the fsnotify
// watcher's dispatch key.
const (
	DocIVRFlow       = "ivr"
	DocWebAPI        = "webapi"
	DocExtensions    = "extensions"
	DocRecordingType = "recording"
)

// entry tracks one logical document's file path and last-published mtime.
// The mtime is only guarded by its own mutex; the published document itself
// lives in an atomic.Pointer so readers never take a lock at all.
type entry struct {
	name string
	path string

	mu    sync.Mutex
	mtime time.Time

	parse   func([]byte) (any, error)
	publish func(any)
}

// Store is the process-wide Configuration Store. One Store is created at
// engine startup and shared read-mostly across all calls.
type Store struct {
	scriptDir string
	log       zerolog.Logger

	entries map[string]*entry

	ivrFlow       atomic.Pointer[model.IVRFlowDocument]
	webapi        atomic.Pointer[model.WebAPIDocument]
	extensions    atomic.Pointer[model.ExtensionMap]
	recordingType atomic.Pointer[model.RecordingTypeMap]
}

// Files names the on-disk filenames for each logical document, resolved
// relative to scriptDir. Filenames carry whatever literal names operators
// hand the engine (including odd-but-real ones like "ivrconfig (3).json").
type Files struct {
	IVRFlow       string
	WebAPI        string
	Extensions    string
	RecordingType string
}

// NewInMemory builds a Store pre-published with doc and no backing files,
// for tests that need a Store to hand to the dispatcher's handler families
// without touching the filesystem. Reload/LoadAll are not usable on the
// result (there is no path to stat), but Get/IVRFlow/GeneralSettings and
// the other typed accessors behave exactly as a file-backed Store's would.
func NewInMemory(doc model.IVRFlowDocument) *Store {
	s := &Store{entries: map[string]*entry{}, log: zerolog.Nop()}
	d := doc
	s.ivrFlow.Store(&d)
	return s
}

// New creates a Store. Call LoadAll before serving any calls.
func New(scriptDir string, files Files, log zerolog.Logger) *Store {
	s := &Store{
		scriptDir: scriptDir,
		log:       log.With().Str("component", "flowstore").Logger(),
	}

	s.entries = map[string]*entry{
		DocIVRFlow: {
			name: DocIVRFlow,
			path: filepath.Join(scriptDir, files.IVRFlow),
			parse: func(b []byte) (any, error) {
				var doc model.IVRFlowDocument
				if err := json.Unmarshal(b, &doc); err != nil {
					return nil, err
				}
				if err := flowvalidate.IVRFlow(&doc); err != nil {
					return nil, err
				}
				return &doc, nil
			},
			publish: func(v any) { s.ivrFlow.Store(v.(*model.IVRFlowDocument)) },
		},
		DocWebAPI: {
			name: DocWebAPI,
			path: filepath.Join(scriptDir, files.WebAPI),
			parse: func(b []byte) (any, error) {
				var doc model.WebAPIDocument
				if err := json.Unmarshal(b, &doc); err != nil {
					return nil, err
				}
				if err := flowvalidate.WebAPI(&doc); err != nil {
					return nil, err
				}
				return &doc, nil
			},
			publish: func(v any) { s.webapi.Store(v.(*model.WebAPIDocument)) },
		},
		DocExtensions: {
			name: DocExtensions,
			path: filepath.Join(scriptDir, files.Extensions),
			parse: func(b []byte) (any, error) {
				var doc model.ExtensionMap
				if err := json.Unmarshal(b, &doc); err != nil {
					return nil, err
				}
				if len(doc) == 0 {
					s.log.Warn().Str("doc", DocExtensions).Msg("extension map is empty")
				}
				return &doc, nil
			},
			publish: func(v any) { s.extensions.Store(v.(*model.ExtensionMap)) },
		},
		DocRecordingType: {
			name: DocRecordingType,
			path: filepath.Join(scriptDir, files.RecordingType),
			parse: func(b []byte) (any, error) {
				var doc model.RecordingTypeMap
				if err := json.Unmarshal(b, &doc); err != nil {
					return nil, err
				}
				return &doc, nil
			},
			publish: func(v any) { s.recordingType.Store(v.(*model.RecordingTypeMap)) },
		},
	}

	return s
}

// LoadAll resolves each registered document's path, probes its mtime, and
// only re-parses on change. Parsed documents are schema-validated before
// publication. Returns the first error encountered but continues attempting
// to load the remaining documents so one bad file doesn't block the rest.
func (s *Store) LoadAll() error {
	var firstErr error
	for _, e := range orderedNames() {
		if err := s.loadIfChanged(s.entries[e]); err != nil {
			s.log.Error().Err(err).Str("doc", e).Msg("failed to load configuration document")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func orderedNames() []string {
	return []string{DocIVRFlow, DocWebAPI, DocExtensions, DocRecordingType}
}

func (s *Store) loadIfChanged(e *entry) error {
	info, err := os.Stat(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return engineerr.Wrap(engineerr.KindConfigNotFound, err, e.path)
		}
		return engineerr.Wrap(engineerr.KindConfigNotFound, err, e.path)
	}

	e.mu.Lock()
	unchanged := !info.ModTime().After(e.mtime) && !e.mtime.IsZero()
	e.mu.Unlock()
	if unchanged {
		return nil
	}

	return s.reparse(e, info.ModTime())
}

// Reload forces a re-parse of name regardless of mtime.
func (s *Store) Reload(name string) error {
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("flowstore: unknown document %q", name)
	}
	info, err := os.Stat(e.path)
	if err != nil {
		return engineerr.Wrap(engineerr.KindConfigNotFound, err, e.path)
	}
	return s.reparse(e, info.ModTime())
}

// reparse reads, parses, and validates a document. Publication happens only
// after both parse and validate succeed (atomic publish); mtime is recorded
// only after successful publication so a failed reload leaves the store
// coherent with what readers currently see — a prior good document, if any,
// is never replaced by a broken one.
func (s *Store) reparse(e *entry, mtime time.Time) error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return engineerr.Wrap(engineerr.KindConfigNotFound, err, e.path)
	}

	doc, err := e.parse(data)
	if err != nil {
		if ee, ok := err.(*engineerr.Error); ok {
			return ee
		}
		return engineerr.Wrap(engineerr.KindConfigParseError, err, e.path)
	}

	e.publish(doc)

	e.mu.Lock()
	e.mtime = mtime
	e.mu.Unlock()

	s.log.Info().Str("doc", e.name).Str("path", e.path).Msg("published configuration document")
	return nil
}

// Get returns the currently published document for name, or nil if it has
// never successfully loaded.
func (s *Store) Get(name string) any {
	switch name {
	case DocIVRFlow:
		if d := s.ivrFlow.Load(); d != nil {
			return d
		}
	case DocWebAPI:
		if d := s.webapi.Load(); d != nil {
			return d
		}
	case DocExtensions:
		if d := s.extensions.Load(); d != nil {
			return d
		}
	case DocRecordingType:
		if d := s.recordingType.Load(); d != nil {
			return d
		}
	}
	return nil
}

// IVRFlow returns the first Configuration's ProcessFlow from the currently
// published flow document, or nil if none has loaded yet.
func (s *Store) IVRFlow() model.ProcessFlow {
	doc := s.ivrFlow.Load()
	if doc == nil || len(doc.IVRConfiguration) == 0 {
		return nil
	}
	return doc.IVRConfiguration[0].IVRProcessFlow
}

// GeneralSettings returns the first Configuration's settings map.
func (s *Store) GeneralSettings() map[string]string {
	doc := s.ivrFlow.Load()
	if doc == nil || len(doc.IVRConfiguration) == 0 {
		return nil
	}
	return doc.IVRConfiguration[0].GeneralSettingValues
}

// WebAPIEndpoints returns the currently published endpoint catalog.
func (s *Store) WebAPIEndpoints() map[string]model.Endpoint {
	doc := s.webapi.Load()
	if doc == nil {
		return nil
	}
	return doc.Result
}

// RecordingConfig returns the currently published recording-type map.
func (s *Store) RecordingConfig() model.RecordingTypeMap {
	d := s.recordingType.Load()
	if d == nil {
		return nil
	}
	return *d
}

// AgentExtensions returns the currently published extension map.
func (s *Store) AgentExtensions() model.ExtensionMap {
	d := s.extensions.Load()
	if d == nil {
		return nil
	}
	return *d
}
