package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File names inside each corp directory.
const (
	fileOverview     = "company.json"
	fileFinancials   = "financials.json"
	fileDividends    = "dividends.json"
	fileGuidance     = "guidance.json"
	fileTreasury     = "treasury.json"
	fileShareholders = "shareholders.json"
	fileOfficers     = "officers.json"
)

// FileStore persists each company as a directory of JSON documents under
// <root>/corp/<corp_code>/, with shared metadata under <root>/meta/.
type FileStore struct {
	root string

	// mu serializes the read-modify-write cycles on the meta files.
	mu sync.Mutex
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) corpPath(corpCode, name string) string {
	return filepath.Join(s.root, "corp", corpCode, name)
}

func (s *FileStore) metaPath(name string) string {
	return filepath.Join(s.root, "meta", name)
}

// writeJSON writes v as indented JSON, replacing the target atomically so a
// concurrent reader never sees a half-written document.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// readJSON loads path into v. A missing file reports (false, nil).
func readJSON(path string, v interface{}) (bool, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// SaveCompany writes every non-nil section; nil sections keep whatever the
// previous sync left on disk.
func (s *FileStore) SaveCompany(_ context.Context, corpCode string, data *CompanyData) error {
	if data == nil {
		return nil
	}
	sections := []struct {
		name string
		v    interface{}
		skip bool
	}{
		{fileOverview, data.Overview, data.Overview == nil},
		{fileFinancials, data.Financials, data.Financials == nil},
		{fileDividends, data.Dividends, data.Dividends == nil},
		{fileGuidance, data.Guidance, data.Guidance == nil},
		{fileTreasury, data.Treasury, data.Treasury == nil},
		{fileShareholders, data.Shareholders, data.Shareholders == nil},
		{fileOfficers, data.Officers, data.Officers == nil},
	}
	for _, sec := range sections {
		if sec.skip {
			continue
		}
		if err := writeJSON(s.corpPath(corpCode, sec.name), sec.v); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) LoadFinancials(_ context.Context, corpCode string) (*FinancialsPayload, error) {
	var p FinancialsPayload
	ok, err := readJSON(s.corpPath(corpCode, fileFinancials), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *FileStore) LoadGuidance(_ context.Context, corpCode string) (*GuidancePayload, error) {
	var p GuidancePayload
	ok, err := readJSON(s.corpPath(corpCode, fileGuidance), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *FileStore) LoadTreasury(_ context.Context, corpCode string) (*TreasuryPayload, error) {
	var p TreasuryPayload
	ok, err := readJSON(s.corpPath(corpCode, fileTreasury), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// UpsertIndexEntry rewrites the shared corp-index.json with the entry added
// or replaced, keyed by corp code.
func (s *FileStore) UpsertIndexEntry(_ context.Context, entry *IndexEntry) error {
	if entry == nil || entry.CorpCode == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.metaPath("corp-index.json")
	var index []IndexEntry
	if _, err := readJSON(path, &index); err != nil {
		return err
	}
	replaced := false
	for i := range index {
		if index[i].CorpCode == entry.CorpCode {
			index[i] = *entry
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, *entry)
	}
	return writeJSON(path, index)
}

// companiesConfig is the shape of meta/companies-config.json.
type companiesConfig struct {
	TargetCorps []string `json:"target_corps"`
}

// TargetCorps reads the sync target list. A missing config file means no
// file-side targets are configured.
func (s *FileStore) TargetCorps(_ context.Context) ([]string, error) {
	var cfg companiesConfig
	if _, err := readJSON(s.metaPath("companies-config.json"), &cfg); err != nil {
		return nil, err
	}
	return cfg.TargetCorps, nil
}

// RecordSyncRun appends the run to meta/sync-runs.json.
func (s *FileStore) RecordSyncRun(_ context.Context, run *SyncRun) error {
	if run == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.metaPath("sync-runs.json")
	var runs []SyncRun
	if _, err := readJSON(path, &runs); err != nil {
		return err
	}
	runs = append(runs, *run)
	return writeJSON(path, runs)
}

func (s *FileStore) Close() error { return nil }
