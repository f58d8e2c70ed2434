package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
)

type mockLinkRepository struct {
	createFn func(ctx context.Context, link *model.Link) error
	getFn    func(ctx context.Context, id string) (*model.Link, error)
	existsFn func(ctx context.Context, id string) (bool, error)
	listFn   func(ctx context.Context, opts repository.ListOptions) ([]model.Link, error)
	updateFn func(ctx context.Context, link *model.Link) error
	deleteFn func(ctx context.Context, id string) error
	walkFn   func(ctx context.Context, fn func(id string)) error
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return false, nil
}

func (m *mockLinkRepository) List(ctx context.Context, opts repository.ListOptions) ([]model.Link, error) {
	if m.listFn != nil {
		return m.listFn(ctx, opts)
	}
	return nil, nil
}

func (m *mockLinkRepository) Update(ctx context.Context, link *model.Link) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockLinkRepository) WalkIDs(ctx context.Context, fn func(id string)) error {
	if m.walkFn != nil {
		return m.walkFn(ctx, fn)
	}
	return nil
}

type mockScanRepository struct {
	createFn func(ctx context.Context, event *model.ScanEvent) error
	listFn   func(ctx context.Context, linkID string) ([]model.ScanEvent, error)
	countFn  func(ctx context.Context, linkID string) (int64, error)
	deleteFn func(ctx context.Context, linkID string) (int64, error)
}

func (m *mockScanRepository) Create(ctx context.Context, event *model.ScanEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockScanRepository) ListByLinkID(ctx context.Context, linkID string) ([]model.ScanEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, linkID)
	}
	return nil, nil
}

func (m *mockScanRepository) CountByLinkID(ctx context.Context, linkID string) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, linkID)
	}
	return 0, nil
}

func (m *mockScanRepository) DeleteByLinkID(ctx context.Context, linkID string) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, linkID)
	}
	return 0, nil
}

type mockUserRepository struct {
	getFn     func(ctx context.Context, id string) (*model.User, error)
	isAdminFn func(ctx context.Context, id string) (bool, error)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) IsAdmin(ctx context.Context, id string) (bool, error) {
	if m.isAdminFn != nil {
		return m.isAdminFn(ctx, id)
	}
	return false, nil
}

type mockRenderer struct {
	renderFn func(text string) (string, error)
}

func (m *mockRenderer) Render(text string) (string, error) {
	if m.renderFn != nil {
		return m.renderFn(text)
	}
	return "data:image/png;base64,ZmFrZQ==", nil
}

func newTestService(links *mockLinkRepository, scans *mockScanRepository, users *mockUserRepository) LinkService {
	return NewLinkService(LinkServiceDeps{
		Links:    links,
		Scans:    scans,
		Users:    users,
		Gen:      NewShortIDGenerator(links),
		Renderer: &mockRenderer{},
		BaseURL:  "https://teag.me",
	})
}

func TestLinkService_CreateLink_Generated(t *testing.T) {
	var created *model.Link
	links := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			created = link
			return nil
		},
	}

	svc := newTestService(links, &mockScanRepository{}, &mockUserRepository{})
	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		RedirectURL: "https://example.com",
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if created == nil {
		t.Fatal("expected link to reach the repository")
	}
	if len(link.ID) != 6 {
		t.Fatalf("expected a 6-char generated id, got %q", link.ID)
	}
	if link.Custom {
		t.Fatal("generated link should not be marked custom")
	}
	if link.Base64 == "" {
		t.Fatal("expected QR image to be attached")
	}
	if got, want := svc.ShortURL(link.ID), "https://teag.me/"+link.ID; got != want {
		t.Fatalf("ShortURL = %q, want %q", got, want)
	}
}

func TestLinkService_CreateLink_CustomPathRoundTrip(t *testing.T) {
	store := map[string]*model.Link{}
	var mu sync.Mutex
	links := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := store[link.ID]; ok {
				return repository.ErrLinkExists
			}
			cp := *link
			store[link.ID] = &cp
			return nil
		},
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			mu.Lock()
			defer mu.Unlock()
			if link, ok := store[id]; ok {
				cp := *link
				return &cp, nil
			}
			return nil, repository.ErrLinkNotFound
		},
		updateFn: func(ctx context.Context, link *model.Link) error {
			mu.Lock()
			defer mu.Unlock()
			store[link.ID] = link
			return nil
		},
	}

	svc := newTestService(links, &mockScanRepository{}, &mockUserRepository{})
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, CreateLinkInput{
		RedirectURL: "https://example.com",
		CustomPath:  "mylink",
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if link.ID != "mylink" || !link.Custom {
		t.Fatalf("expected custom link 'mylink', got %+v", link)
	}

	got, err := svc.GetLink(ctx, "mylink")
	if err != nil {
		t.Fatalf("GetLink returned error: %v", err)
	}
	if got.RedirectURL != "https://example.com" {
		t.Fatalf("round trip lost destination, got %q", got.RedirectURL)
	}

	// Same custom path again must collide.
	_, err = svc.CreateLink(ctx, CreateLinkInput{
		RedirectURL: "https://other.example.com",
		CustomPath:  "mylink",
		UserID:      "user-2",
	})
	if !errors.Is(err, repository.ErrLinkExists) {
		t.Fatalf("expected ErrLinkExists, got %v", err)
	}
}

func TestLinkService_CreateLink_ReservedPath(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, &mockScanRepository{}, &mockUserRepository{})

	for _, path := range []string{"admin", "Admin", "ADMIN", "api", "Login"} {
		_, err := svc.CreateLink(context.Background(), CreateLinkInput{
			RedirectURL: "https://example.com",
			CustomPath:  path,
			UserID:      "user-1",
		})
		if !errors.Is(err, ErrReservedPath) {
			t.Fatalf("expected ErrReservedPath for %q, got %v", path, err)
		}
	}
}

func TestLinkService_CreateLink_InvalidPath(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, &mockScanRepository{}, &mockUserRepository{})

	for _, path := range []string{"ab", "has space", "semi;colon", strings.Repeat("x", 21)} {
		_, err := svc.CreateLink(context.Background(), CreateLinkInput{
			RedirectURL: "https://example.com",
			CustomPath:  path,
			UserID:      "user-1",
		})
		if !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for %q, got %v", path, err)
		}
	}
}

func TestLinkService_CreateLink_InvalidDestination(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, &mockScanRepository{}, &mockUserRepository{})

	for _, dest := range []string{"", "example.com", "ftp://example.com", "https://"} {
		_, err := svc.CreateLink(context.Background(), CreateLinkInput{
			RedirectURL: dest,
			UserID:      "user-1",
		})
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("expected ErrInvalidURL for %q, got %v", dest, err)
		}
	}
}

func TestLinkService_CreateLink_RegeneratesOnInsertRace(t *testing.T) {
	attempts := 0
	links := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			attempts++
			if attempts == 1 {
				// Simulate losing the check-then-insert race once.
				return repository.ErrLinkExists
			}
			return nil
		},
	}

	svc := newTestService(links, &mockScanRepository{}, &mockUserRepository{})
	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		RedirectURL: "https://example.com",
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a second insert attempt after the race, got %d", attempts)
	}
}

// mockIDGenerator hands the same colliding candidate to the first burst of
// callers, then falls back to unique ids, so insert races are guaranteed.
type mockIDGenerator struct {
	mu        sync.Mutex
	collider  string
	colliding int
	seq       int
}

func (m *mockIDGenerator) Next(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.colliding > 0 {
		m.colliding--
		return m.collider, nil
	}
	m.seq++
	return fmt.Sprintf("uniq%02d", m.seq), nil
}

func (m *mockIDGenerator) Observe(string) {}

func TestLinkService_CreateLink_ConcurrentCollidingIDs(t *testing.T) {
	const workers = 8

	var mu sync.Mutex
	inserted := map[string]int{}
	links := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := inserted[link.ID]; ok {
				return repository.ErrLinkExists
			}
			inserted[link.ID]++
			return nil
		},
	}

	gen := &mockIDGenerator{collider: "c0c0c0", colliding: workers}
	svc := NewLinkService(LinkServiceDeps{
		Links:    links,
		Scans:    &mockScanRepository{},
		Users:    &mockUserRepository{},
		Gen:      gen,
		Renderer: &mockRenderer{},
		BaseURL:  "https://teag.me",
	})

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateLink(context.Background(), CreateLinkInput{
				RedirectURL: "https://example.com",
				UserID:      "user-1",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create failed: %v", err)
		}
	}

	if len(inserted) != workers {
		t.Fatalf("expected %d distinct ids, got %d", workers, len(inserted))
	}
	if inserted["c0c0c0"] != 1 {
		t.Fatalf("contested id inserted %d times, want exactly 1", inserted["c0c0c0"])
	}
	for id, n := range inserted {
		if n != 1 {
			t.Fatalf("id %q inserted %d times, want exactly 1", id, n)
		}
	}
}

func TestLinkService_CreateLink_RenderFailureKeepsLink(t *testing.T) {
	var created *model.Link
	links := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			created = link
			return nil
		},
	}

	svc := NewLinkService(LinkServiceDeps{
		Links: links,
		Scans: &mockScanRepository{},
		Users: &mockUserRepository{},
		Gen:   NewShortIDGenerator(links),
		Renderer: &mockRenderer{renderFn: func(string) (string, error) {
			return "", errors.New("encode failed")
		}},
		BaseURL: "https://teag.me",
	})

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		RedirectURL: "https://example.com",
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("a failed render must not fail the create: %v", err)
	}
	if created == nil || link.ID != created.ID {
		t.Fatal("expected the inserted link to be returned")
	}
	if link.Base64 != "" {
		t.Fatalf("expected no image on render failure, got %q", link.Base64)
	}
}

func TestLinkService_UpdateLink_Authorization(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, UserID: "owner", RedirectURL: "https://example.com"}, nil
		},
	}
	users := &mockUserRepository{
		isAdminFn: func(ctx context.Context, id string) (bool, error) {
			return id == "root", nil
		},
	}

	svc := newTestService(links, &mockScanRepository{}, users)
	ctx := context.Background()
	archived := true

	if _, err := svc.UpdateLink(ctx, "abc123", "owner", UpdateLinkInput{Archived: &archived}); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if _, err := svc.UpdateLink(ctx, "abc123", "root", UpdateLinkInput{Archived: &archived}); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
	if _, err := svc.UpdateLink(ctx, "abc123", "stranger", UpdateLinkInput{Archived: &archived}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
}

func TestLinkService_DeleteLink_CascadesScans(t *testing.T) {
	scansDeleted := false
	linkDeleted := false

	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, UserID: "owner"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			if !scansDeleted {
				t.Fatal("link deleted before its scan events")
			}
			linkDeleted = true
			return nil
		},
	}
	scans := &mockScanRepository{
		deleteFn: func(ctx context.Context, linkID string) (int64, error) {
			scansDeleted = true
			return 3, nil
		},
	}

	svc := newTestService(links, scans, &mockUserRepository{})
	if err := svc.DeleteLink(context.Background(), "abc123", "owner"); err != nil {
		t.Fatalf("DeleteLink returned error: %v", err)
	}
	if !linkDeleted {
		t.Fatal("expected link to be deleted")
	}
}

func TestLinkService_GetAnalytics(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, UserID: "owner"}, nil
		},
	}
	scans := &mockScanRepository{
		listFn: func(ctx context.Context, linkID string) ([]model.ScanEvent, error) {
			return []model.ScanEvent{{ID: "s1", LinkID: linkID}, {ID: "s2", LinkID: linkID}}, nil
		},
		countFn: func(ctx context.Context, linkID string) (int64, error) {
			return 2, nil
		},
	}

	svc := newTestService(links, scans, &mockUserRepository{})
	analytics, err := svc.GetAnalytics(context.Background(), "abc123", "owner")
	if err != nil {
		t.Fatalf("GetAnalytics returned error: %v", err)
	}
	if len(analytics.Scans) != 2 || analytics.Total != 2 {
		t.Fatalf("unexpected analytics: %+v", analytics)
	}

	if _, err := svc.GetAnalytics(context.Background(), "abc123", "stranger"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
