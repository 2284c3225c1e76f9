package store

import "context"

// DualStore writes to both backends and reads from the database, falling back
// to the file tree when the database has nothing for a company. Keeping both
// in step lets the file tree stay browsable while the database serves queries.
type DualStore struct {
	files *FileStore
	db    *SQLiteStore
}

// NewDualStore wraps a file store and a database store.
func NewDualStore(files *FileStore, db *SQLiteStore) *DualStore {
	return &DualStore{files: files, db: db}
}

func (s *DualStore) SaveCompany(ctx context.Context, corpCode string, data *CompanyData) error {
	if err := s.files.SaveCompany(ctx, corpCode, data); err != nil {
		return err
	}
	return s.db.SaveCompany(ctx, corpCode, data)
}

func (s *DualStore) LoadFinancials(ctx context.Context, corpCode string) (*FinancialsPayload, error) {
	p, err := s.db.LoadFinancials(ctx, corpCode)
	if err != nil || p != nil {
		return p, err
	}
	return s.files.LoadFinancials(ctx, corpCode)
}

func (s *DualStore) LoadGuidance(ctx context.Context, corpCode string) (*GuidancePayload, error) {
	p, err := s.db.LoadGuidance(ctx, corpCode)
	if err != nil || p != nil {
		return p, err
	}
	return s.files.LoadGuidance(ctx, corpCode)
}

func (s *DualStore) LoadTreasury(ctx context.Context, corpCode string) (*TreasuryPayload, error) {
	p, err := s.db.LoadTreasury(ctx, corpCode)
	if err != nil || p != nil {
		return p, err
	}
	return s.files.LoadTreasury(ctx, corpCode)
}

func (s *DualStore) UpsertIndexEntry(ctx context.Context, entry *IndexEntry) error {
	if err := s.files.UpsertIndexEntry(ctx, entry); err != nil {
		return err
	}
	return s.db.UpsertIndexEntry(ctx, entry)
}

// TargetCorps prefers the database target table; the file-side config is the
// fallback for databases that have not been seeded yet.
func (s *DualStore) TargetCorps(ctx context.Context) ([]string, error) {
	corps, err := s.db.TargetCorps(ctx)
	if err != nil || len(corps) > 0 {
		return corps, err
	}
	return s.files.TargetCorps(ctx)
}

func (s *DualStore) RecordSyncRun(ctx context.Context, run *SyncRun) error {
	if err := s.files.RecordSyncRun(ctx, run); err != nil {
		return err
	}
	return s.db.RecordSyncRun(ctx, run)
}

func (s *DualStore) Close() error {
	ferr := s.files.Close()
	derr := s.db.Close()
	if derr != nil {
		return derr
	}
	return ferr
}
