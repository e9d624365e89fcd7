// Package prefs persists user preferences that outlive a capture session:
// the directories last used for export, save and open dialogs, the export
// format per protocol decoder, the last selected device and run mode.
//
// Preferences are stored as YAML on an afero.Fs so tests can run against
// an in-memory file system.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/capctl/internal/capture"
	"github.com/Iron-Ham/capctl/internal/device"
	"github.com/Iron-Ham/capctl/internal/errors"
	"github.com/Iron-Ham/capctl/internal/logging"
)

// FileName is the preferences file created in the config directory.
const FileName = "prefs.yaml"

// DefaultExportFormat is used until the user picks another one.
const DefaultExportFormat = "csv"

// DirKind names one of the remembered directories.
type DirKind int

const (
	DirExport DirKind = iota
	DirSave
	DirSession
	DirOpen
	DirScreenshot
	DirProtocolExport
)

var dirKindNames = map[DirKind]string{
	DirExport:         "export",
	DirSave:           "save",
	DirSession:        "session",
	DirOpen:           "open",
	DirScreenshot:     "screenshot",
	DirProtocolExport: "protocol_export",
}

func (k DirKind) String() string {
	if name, ok := dirKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// History holds the directories and formats remembered between runs.
type History struct {
	ExportDir          string `yaml:"export_dir,omitempty"`
	SaveDir            string `yaml:"save_dir,omitempty"`
	SessionDir         string `yaml:"session_dir,omitempty"`
	OpenDir            string `yaml:"open_dir,omitempty"`
	ScreenshotPath     string `yaml:"screenshot_path,omitempty"`
	ProtocolExportPath string `yaml:"protocol_export_path,omitempty"`
	ExportFormat       string `yaml:"export_format"`
	ShowDocuments      bool   `yaml:"show_documents"`
}

func (h *History) dir(kind DirKind) *string {
	switch kind {
	case DirExport:
		return &h.ExportDir
	case DirSave:
		return &h.SaveDir
	case DirSession:
		return &h.SessionDir
	case DirOpen:
		return &h.OpenDir
	case DirScreenshot:
		return &h.ScreenshotPath
	case DirProtocolExport:
		return &h.ProtocolExportPath
	default:
		return nil
	}
}

// Prefs is the full preferences document.
type Prefs struct {
	History History `yaml:"history"`
	// ProtocolFormats maps a protocol decoder id to its export format.
	ProtocolFormats map[string]string `yaml:"protocol_formats,omitempty"`
	LastDevice      string            `yaml:"last_device,omitempty"`
	RunMode         string            `yaml:"run_mode"`
	Language        int32             `yaml:"language"`
}

// Default returns the preferences used when no file exists yet.
func Default() Prefs {
	return Prefs{
		History: History{
			ExportFormat:  DefaultExportFormat,
			ShowDocuments: true,
		},
		RunMode:  capture.Single.String(),
		Language: device.LanguageEnglish,
	}
}

func (p Prefs) clone() Prefs {
	if p.ProtocolFormats != nil {
		formats := make(map[string]string, len(p.ProtocolFormats))
		for k, v := range p.ProtocolFormats {
			formats[k] = v
		}
		p.ProtocolFormats = formats
	}
	return p
}

// Store loads and saves Prefs at a fixed path. It is safe for concurrent use.
type Store struct {
	fs     afero.Fs
	path   string
	logger *logging.Logger

	mu    sync.RWMutex
	prefs Prefs
}

// NewStore creates a Store holding the defaults. Call Load to read the file.
func NewStore(fs afero.Fs, path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		fs:     fs,
		path:   path,
		logger: logger.WithComponent("prefs"),
		prefs:  Default(),
	}
}

// Path returns the preferences file path.
func (s *Store) Path() string { return s.path }

// Load reads the preferences file. A missing file leaves the defaults in
// place and is not an error.
func (s *Store) Load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no preferences file, using defaults", "path", s.path)
			return nil
		}
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	if p.History.ExportFormat == "" {
		p.History.ExportFormat = DefaultExportFormat
	}

	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	return nil
}

// Save writes the preferences file atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.save()
}

// save writes s.prefs. The caller must hold the mutex.
func (s *Store) save() error {
	data, err := yaml.Marshal(s.prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	return atomicWriteFile(s.fs, s.path, data, 0644)
}

// Get returns a copy of the current preferences.
func (s *Store) Get() Prefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.clone()
}

// Update applies fn to the preferences and saves them.
func (s *Store) Update(fn func(*Prefs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.prefs)
	return s.save()
}

// Dir returns the remembered directory of the given kind.
func (s *Store) Dir(kind DirKind) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.prefs.History
	if p := h.dir(kind); p != nil {
		return *p
	}
	return ""
}

// RememberDir records the directory containing filePath. The file is only
// rewritten when the directory differs from the remembered one; the return
// value reports whether it did.
func (s *Store) RememberDir(kind DirKind, filePath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.prefs.History.dir(kind)
	if target == nil {
		return false, errors.NewValidationError("unknown directory kind").WithField("kind").WithValue(int(kind))
	}

	dir := filepath.Dir(filePath)
	if *target == dir {
		return false, nil
	}
	*target = dir
	return true, s.save()
}

// ProtocolFormat returns the export format remembered for a decoder, or
// the general export format when none was set.
func (s *Store) ProtocolFormat(protocolID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.prefs.ProtocolFormats[protocolID]; ok {
		return f
	}
	return s.prefs.History.ExportFormat
}

// SetProtocolFormat remembers the export format for a decoder.
func (s *Store) SetProtocolFormat(protocolID, format string) error {
	if protocolID == "" {
		return errors.NewValidationError("protocol id is required").WithField("protocol")
	}
	return s.Update(func(p *Prefs) {
		if p.ProtocolFormats == nil {
			p.ProtocolFormats = make(map[string]string)
		}
		p.ProtocolFormats[protocolID] = format
	})
}

type setter func(p *Prefs, raw string) error

func stringSetter(field func(*Prefs) *string) setter {
	return func(p *Prefs, raw string) error {
		*field(p) = raw
		return nil
	}
}

var setters = map[string]setter{
	"history.export_dir":           stringSetter(func(p *Prefs) *string { return &p.History.ExportDir }),
	"history.save_dir":             stringSetter(func(p *Prefs) *string { return &p.History.SaveDir }),
	"history.session_dir":          stringSetter(func(p *Prefs) *string { return &p.History.SessionDir }),
	"history.open_dir":             stringSetter(func(p *Prefs) *string { return &p.History.OpenDir }),
	"history.screenshot_path":      stringSetter(func(p *Prefs) *string { return &p.History.ScreenshotPath }),
	"history.protocol_export_path": stringSetter(func(p *Prefs) *string { return &p.History.ProtocolExportPath }),
	"history.export_format":        stringSetter(func(p *Prefs) *string { return &p.History.ExportFormat }),
	"last_device":                  stringSetter(func(p *Prefs) *string { return &p.LastDevice }),
	"history.show_documents": func(p *Prefs, raw string) error {
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		p.History.ShowDocuments = v
		return nil
	},
	"run_mode": func(p *Prefs, raw string) error {
		mode, ok := capture.ParseRunMode(raw)
		if !ok {
			return fmt.Errorf("unknown run mode %q", raw)
		}
		p.RunMode = mode.String()
		return nil
	},
	"language": func(p *Prefs, raw string) error {
		v, err := cast.ToInt32E(raw)
		if err != nil {
			return err
		}
		if v != device.LanguageChinese && v != device.LanguageEnglish {
			return fmt.Errorf("unsupported language code %d", v)
		}
		p.Language = v
		return nil
	},
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set parses raw for the named key and saves the result.
func (s *Store) Set(key, raw string) error {
	set, ok := setters[key]
	if !ok {
		return errors.NewValidationError("unknown preference key").WithField("key").WithValue(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prefs.clone()
	if err := set(&next, raw); err != nil {
		return errors.NewValidationError("invalid value").WithField(key).WithValue(raw).WithCause(err)
	}
	s.prefs = next
	return s.save()
}

// DefaultSessionFile returns the session file a driver ships for a work
// mode and UI language: <resourceDir>/<driver><mode>.def<language>.dsc.
// Mode codes follow the instrument firmware (logic 0, dso 1, analog 2).
func DefaultSessionFile(resourceDir, driver string, mode device.WorkMode, language int32) string {
	name := fmt.Sprintf("%s%d.def%d.dsc", driver, modeCode(mode), language)
	return filepath.Join(resourceDir, name)
}

func modeCode(mode device.WorkMode) int {
	switch mode {
	case device.Dso:
		return 1
	case device.Analog:
		return 2
	default:
		return 0
	}
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it over path.
func atomicWriteFile(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
